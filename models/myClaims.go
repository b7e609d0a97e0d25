package models

import (
	jwt "github.com/dgrijalva/jwt-go"
)

// MyClaims はJWTクレームの構造体定義です。
// ユーザー認証そのものは外部のIDプロバイダが担い、ここではIDと管理者フラグのみ扱う。
type MyClaims struct {
	UserID uint `json:"userid"`
	Admin  bool `json:"admin"`
	jwt.StandardClaims
}

// Actor はリクエストを行った主体
type Actor struct {
	UserID uint
	Admin  bool
}
