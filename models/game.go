package models

import (
	"time"

	"gorm.io/gorm"
)

// Game モデルの定義。管理者が作成する。
type Game struct {
	gorm.Model
	Name         string     `gorm:"not null" json:"name"`
	PictureRef   string     `json:"pictureRef"` // メディア側のキー
	Status       GameStatus `gorm:"not null;default:'registration';index" json:"status"`
	WinnerUserID *uint      `json:"winnerUserId,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Participant はゲームごとの参加者。(GameID, UserID) で一意。
// 死亡後も削除せずリングの履歴として残す。
type Participant struct {
	gorm.Model
	GameID       uint       `gorm:"not null;uniqueIndex:idx_participants_game_user;index:idx_participants_game_target,priority:1" json:"gameId"`
	UserID       uint       `gorm:"not null;uniqueIndex:idx_participants_game_user" json:"userId"`
	TargetUserID uint       `gorm:"not null;index:idx_participants_game_target,priority:2" json:"targetUserId"`
	LifeStatus   LifeStatus `gorm:"not null;default:'alive'" json:"lifeStatus"`
	DiedAt       *time.Time `json:"diedAt,omitempty"`
}

// KillClaim はキル申請。証拠動画などの実体はメディア側が持ち、ここでは参照のみ保持する。
type KillClaim struct {
	gorm.Model
	GameID           uint        `gorm:"not null;index:idx_kill_claims_pair,priority:1" json:"gameId"`
	PosterUserID     uint        `gorm:"not null;index:idx_kill_claims_pair,priority:2" json:"posterUserId"`
	VictimUserID     uint        `gorm:"not null;index:idx_kill_claims_pair,priority:3" json:"victimUserId"`
	Status           ClaimStatus `gorm:"not null;default:'pending';index" json:"status"`
	ConfirmedAt      *time.Time  `json:"confirmedAt,omitempty"`
	ResolvedByUserID *uint       `json:"resolvedByUserId,omitempty"` // 管理者による裁定時のみ
	ProofRef         string      `json:"proofRef"`
	ThumbnailRef     string      `json:"thumbnailRef"`
	Caption          string      `gorm:"type:text" json:"caption"`
	Latitude         *float64    `json:"latitude,omitempty"`
	Longitude        *float64    `json:"longitude,omitempty"`
}
