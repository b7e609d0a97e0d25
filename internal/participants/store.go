// Package participants はゲームごとの参加者レコードのストア。
// リングのことは知らず、ターゲット列は逆引き用のインデックスでしかない。
package participants

import (
	"context"
	"errors"
	"fmt"

	"assassinserver/internal/gameerr"
	"assassinserver/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter は ListByGame の絞り込み条件。ゼロ値は全件
type Filter struct {
	LifeStatus models.LifeStatus
}

type Store struct {
	db *gorm.DB
}

// NewStore は db（トランザクションでもよい）に結びついたストアを返す
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create は (game, user) の参加者を Alive で追加する。既に参加済みなら既存の行と
// ErrAlreadyJoined を返す。
func (s *Store) Create(ctx context.Context, gameID, userID, targetUserID uint) (*models.Participant, error) {
	if existing, err := s.Get(ctx, gameID, userID); err == nil {
		return existing, gameerr.ErrAlreadyJoined.With("user %d in game %d", userID, gameID)
	} else if !errors.Is(err, gameerr.ErrNotFound) {
		return nil, err
	}

	p := &models.Participant{
		GameID:       gameID,
		UserID:       userID,
		TargetUserID: targetUserID,
		LifeStatus:   models.LifeAlive,
	}
	// 一意インデックスが最後の砦
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "game_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(p)
	if res.Error != nil {
		return nil, fmt.Errorf("create participant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		existing, err := s.Get(ctx, gameID, userID)
		if err != nil {
			return nil, err
		}
		return existing, gameerr.ErrAlreadyJoined.With("user %d in game %d", userID, gameID)
	}
	return p, nil
}

func (s *Store) Get(ctx context.Context, gameID, userID uint) (*models.Participant, error) {
	var p models.Participant
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gameerr.ErrNotFound.With("participant %d in game %d", userID, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return &p, nil
}

// ListByGame は参加順に参加者を返す
func (s *Store) ListByGame(ctx context.Context, gameID uint, filter Filter) ([]models.Participant, error) {
	q := s.db.WithContext(ctx).Where("game_id = ?", gameID)
	if filter.LifeStatus != "" {
		q = q.Where("life_status = ?", filter.LifeStatus)
	}
	var out []models.Participant
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return out, nil
}

// FindByTarget は現在のターゲットが targetUserID の参加者を参加順に返す。statuses で生存状態を絞れる
func (s *Store) FindByTarget(ctx context.Context, gameID, targetUserID uint, statuses ...models.LifeStatus) ([]models.Participant, error) {
	q := s.db.WithContext(ctx).Where("game_id = ? AND target_user_id = ?", gameID, targetUserID)
	if len(statuses) > 0 {
		q = q.Where("life_status IN ?", statuses)
	}
	var out []models.Participant
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find participants by target: %w", err)
	}
	return out, nil
}

// Last はゲームに最後に追加された参加者を返す
func (s *Store) Last(ctx context.Context, gameID uint) (*models.Participant, error) {
	var p models.Participant
	err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("id DESC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gameerr.ErrNotFound.With("no participants in game %d", gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("last participant: %w", err)
	}
	return &p, nil
}

func (s *Store) Count(ctx context.Context, gameID uint, statuses ...models.LifeStatus) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Participant{}).Where("game_id = ?", gameID)
	if len(statuses) > 0 {
		q = q.Where("life_status IN ?", statuses)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return n, nil
}

func (s *Store) Save(ctx context.Context, p *models.Participant) error {
	if !p.LifeStatus.Valid() {
		return gameerr.ErrInvalid.With("life status %q", p.LifeStatus)
	}
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save participant: %w", err)
	}
	return nil
}
