// Package claims はキル申請の台帳
package claims

import (
	"context"
	"errors"
	"fmt"

	"assassinserver/internal/gameerr"
	"assassinserver/models"

	"gorm.io/gorm"
)

var openStatuses = []models.ClaimStatus{models.ClaimPending, models.ClaimConflicting}

// Filter は List の絞り込み条件。ゼロ値の項目は全件に一致する
type Filter struct {
	Status       models.ClaimStatus
	PosterUserID uint
	VictimUserID uint
}

type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Create は申請を Pending で保存する。同じ投稿者から同じ被害者への未解決の申請が
// 残っている間は ErrDuplicateClaim になる。
func (l *Ledger) Create(ctx context.Context, claim *models.KillClaim) error {
	existing, err := l.FindOpen(ctx, claim.GameID, claim.PosterUserID, claim.VictimUserID)
	if err != nil && !errors.Is(err, gameerr.ErrNotFound) {
		return err
	}
	if existing != nil {
		return gameerr.ErrDuplicateClaim.With("claim %d is still %s", existing.ID, existing.Status)
	}

	claim.Status = models.ClaimPending
	if err := l.db.WithContext(ctx).Create(claim).Error; err != nil {
		return fmt.Errorf("create claim: %w", err)
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, id uint) (*models.KillClaim, error) {
	var c models.KillClaim
	err := l.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gameerr.ErrNotFound.With("claim %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return &c, nil
}

// GameOf は申請が属するゲームを返す。作成後に変わることはない
func (l *Ledger) GameOf(ctx context.Context, id uint) (uint, error) {
	c, err := l.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return c.GameID, nil
}

// FindOpen は (投稿者, 被害者) の未解決の申請を返す
func (l *Ledger) FindOpen(ctx context.Context, gameID, posterUserID, victimUserID uint) (*models.KillClaim, error) {
	var c models.KillClaim
	err := l.db.WithContext(ctx).
		Where("game_id = ? AND poster_user_id = ? AND victim_user_id = ? AND status IN ?",
			gameID, posterUserID, victimUserID, openStatuses).
		Order("id").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gameerr.ErrNotFound.With("no open claim by %d on %d", posterUserID, victimUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("find open claim: %w", err)
	}
	return &c, nil
}

// List はゲームの申請を新しい順に返す
func (l *Ledger) List(ctx context.Context, gameID uint, filter Filter) ([]models.KillClaim, error) {
	q := l.db.WithContext(ctx).Where("game_id = ?", gameID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.PosterUserID != 0 {
		q = q.Where("poster_user_id = ?", filter.PosterUserID)
	}
	if filter.VictimUserID != 0 {
		q = q.Where("victim_user_id = ?", filter.VictimUserID)
	}
	var out []models.KillClaim
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return out, nil
}

func (l *Ledger) Save(ctx context.Context, claim *models.KillClaim) error {
	if !claim.Status.Valid() {
		return gameerr.ErrInvalid.With("claim status %q", claim.Status)
	}
	if err := l.db.WithContext(ctx).Save(claim).Error; err != nil {
		return fmt.Errorf("save claim: %w", err)
	}
	return nil
}
