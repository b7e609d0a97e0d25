package auth

import (
	"errors"
	"fmt"
	"time"

	"assassinserver/models"

	jwt "github.com/dgrijalva/jwt-go"
)

var ErrInvalidToken = errors.New("invalid token")

// Signer は外部IDプロバイダと同じ鍵でJWTを発行・検証する
type Signer struct {
	key []byte
	ttl time.Duration
}

func NewSigner(config models.JWTConfig) (*Signer, error) {
	if config.Secret == "" {
		return nil, errors.New("jwt.secret is not set")
	}
	return &Signer{key: []byte(config.Secret), ttl: config.TTL}, nil
}

// GenerateToken はユーザーIDと管理者フラグを内包したトークンを生成する
func (s *Signer) GenerateToken(userID uint, admin bool) (string, error) {
	claims := &models.MyClaims{
		UserID: userID,
		Admin:  admin,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(s.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// ParseToken はトークンを検証してクレームを返す
func (s *Signer) ParseToken(tokenString string) (*models.MyClaims, error) {
	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
