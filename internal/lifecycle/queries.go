package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"assassinserver/internal/claims"
	"assassinserver/internal/gameerr"
	"assassinserver/internal/participants"
	"assassinserver/internal/ring"
	"assassinserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 読み取り専用の投影。ロックは取らない

func (c *Controller) GetGame(ctx context.Context, gameID uint) (*models.Game, error) {
	var game models.Game
	err := c.db.WithContext(ctx).First(&game, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gameerr.ErrNotFound.With("game %d", gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	return &game, nil
}

// ListGames はゲームを新しい順に返す。status 指定時はその状態のみ
func (c *Controller) ListGames(ctx context.Context, status models.GameStatus) ([]models.Game, error) {
	q := c.db.WithContext(ctx)
	if status != "" {
		if !status.Valid() {
			return nil, gameerr.ErrInvalid.With("game status %q", status)
		}
		q = q.Where("status = ?", status)
	}
	var games []models.Game
	if err := q.Order("id DESC").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// ListParticipants は参加順に参加者を返す。管理者以外には本人の行を除きターゲットを隠す
func (c *Controller) ListParticipants(ctx context.Context, gameID uint, actor models.Actor, filter participants.Filter) ([]models.Participant, error) {
	if filter.LifeStatus != "" && !filter.LifeStatus.Valid() {
		return nil, gameerr.ErrInvalid.With("life status %q", filter.LifeStatus)
	}
	if _, err := c.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	list, err := participants.NewStore(c.db).ListByGame(ctx, gameID, filter)
	if err != nil {
		return nil, err
	}
	if !actor.Admin {
		for i := range list {
			if list[i].UserID != actor.UserID {
				list[i].TargetUserID = 0
			}
		}
	}
	return list, nil
}

// MyTarget は呼び出し者の現在のターゲットを返す
func (c *Controller) MyTarget(ctx context.Context, gameID, userID uint) (uint, error) {
	game, err := c.GetGame(ctx, gameID)
	if err != nil {
		return 0, err
	}
	if game.Status != models.GameInProgress {
		return 0, gameerr.ErrGameNotActive.With("game %d is %s", gameID, game.Status)
	}
	p, err := participants.NewStore(c.db).Get(ctx, gameID, userID)
	if err != nil {
		return 0, err
	}
	if !p.LifeStatus.InRing() {
		return 0, gameerr.ErrNotAlive.With("user %d is %s", userID, p.LifeStatus)
	}
	return p.TargetUserID, nil
}

// Ring は検証済みの巡回順を返す。管理者のみ
func (c *Controller) Ring(ctx context.Context, gameID uint, actor models.Actor) ([]uint, error) {
	if !actor.Admin {
		return nil, gameerr.ErrForbidden.With("user %d may not view the ring", actor.UserID)
	}
	if _, err := c.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	order, err := c.ring.View(ctx, ring.NewStores(c.db), gameID)
	if err != nil {
		c.logger.Error("ring view failed", zap.Uint("game_id", gameID), zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (c *Controller) GetClaim(ctx context.Context, claimID uint) (*models.KillClaim, error) {
	return claims.NewLedger(c.db).Get(ctx, claimID)
}

// ListClaims はゲームの申請フィードを新しい順に返す
func (c *Controller) ListClaims(ctx context.Context, gameID uint, filter claims.Filter) ([]models.KillClaim, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, gameerr.ErrInvalid.With("claim status %q", filter.Status)
	}
	cached, version, ok := c.feed.Get(ctx, gameID, filter)
	if ok {
		return cached, nil
	}
	if _, err := c.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	list, err := claims.NewLedger(c.db).List(ctx, gameID, filter)
	if err != nil {
		return nil, err
	}
	c.feed.Put(ctx, gameID, version, filter, list)
	return list, nil
}

// AuditFinding はリング検証に失敗したゲーム
type AuditFinding struct {
	GameID uint
	Err    error
}

// AuditRings は進行中の全ゲームのリングを検証し直す。書き込みはしない
func (c *Controller) AuditRings(ctx context.Context) ([]AuditFinding, error) {
	games, err := c.ListGames(ctx, models.GameInProgress)
	if err != nil {
		return nil, err
	}
	var findings []AuditFinding
	for _, g := range games {
		if _, err := c.ring.View(ctx, ring.NewStores(c.db), g.ID); err != nil {
			findings = append(findings, AuditFinding{GameID: g.ID, Err: err})
		}
	}
	return findings, nil
}
