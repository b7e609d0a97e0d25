// Package lifecycle はゲームを Registration → InProgress → Completed と進める。
// リングを変更するトランザクションはここでだけ開く。
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"assassinserver/database"
	"assassinserver/internal/cache"
	"assassinserver/internal/claims"
	"assassinserver/internal/gameerr"
	"assassinserver/internal/ring"
	"assassinserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 操作名。メトリクスのラベルとログにも使う
const (
	opCreate  = "create_game"
	opStart   = "start_game"
	opJoin    = "join"
	opSubmit  = "submit_claim"
	opConfirm = "confirm_claim"
	opDeny    = "deny_claim"
	opResolve = "admin_resolve"
)

// 各操作が要求するゲーム状態
var gates = map[string]models.GameStatus{
	opStart:   models.GameRegistration,
	opJoin:    models.GameRegistration,
	opSubmit:  models.GameInProgress,
	opConfirm: models.GameInProgress,
	opDeny:    models.GameInProgress,
	opResolve: models.GameInProgress,
}

func gateError(want models.GameStatus) *gameerr.Error {
	if want == models.GameRegistration {
		return gameerr.ErrGameNotInRegistration
	}
	return gameerr.ErrGameNotActive
}

// Recorder は更新操作ごとに1件の観測を受け取る
type Recorder interface {
	Observe(op, outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Observe(string, string, time.Duration) {}

type Controller struct {
	db      *gorm.DB
	ring    *ring.Manager
	logger  *zap.Logger
	metrics Recorder
	feed    cache.Feed
	now     func() time.Time
}

type Option func(*Controller)

func WithMetrics(r Recorder) Option {
	return func(c *Controller) { c.metrics = r }
}

func WithFeed(f cache.Feed) Option {
	return func(c *Controller) { c.feed = f }
}

// WithClock はコントローラとリングの時刻源を固定する
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(db *gorm.DB, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		db:      db,
		logger:  logger,
		metrics: nopRecorder{},
		feed:    cache.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ring = ring.NewManager(logger).WithClock(c.now)
	return c
}

// withGame はゲーム行をロックしたトランザクションで fn を実行する。先に op が要求する状態かを
// 確認し、エラーなら全てロールバックする。
func (c *Controller) withGame(ctx context.Context, gameID uint, op string, fn func(tx *gorm.DB, game *models.Game, st ring.Stores) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := lockGame(tx, gameID)
		if err != nil {
			return err
		}
		if want, ok := gates[op]; ok && game.Status != want {
			return gateError(want).With("game %d is %s", game.ID, game.Status)
		}
		return fn(tx, game, ring.NewStores(tx))
	})
}

func lockGame(tx *gorm.DB, gameID uint) (*models.Game, error) {
	var game models.Game
	err := database.ForUpdate(tx).First(&game, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gameerr.ErrNotFound.With("game %d", gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock game: %w", err)
	}
	return &game, nil
}

// finish は op の結果をメトリクスとログに残す
func (c *Controller) finish(op string, start time.Time, err error, fields ...zap.Field) {
	outcome := "ok"
	if err != nil {
		outcome = gameerr.CodeOf(err)
	}
	c.metrics.Observe(op, outcome, time.Since(start))

	fields = append(fields, zap.String("op", op))
	switch kind := gameerr.KindOf(err); {
	case err == nil:
		c.logger.Info("committed", fields...)
	case kind == gameerr.KindIntegrity || kind == gameerr.KindUnknown:
		c.logger.Error("operation failed", append(fields, zap.Error(err))...)
	default:
		c.logger.Warn("rejected", append(fields, zap.String("code", gameerr.CodeOf(err)), zap.Error(err))...)
	}
}

// CreateGame は参加受付中の新しいゲームを作る
func (c *Controller) CreateGame(ctx context.Context, actor models.Actor, name, pictureRef string) (game *models.Game, err error) {
	defer func(start time.Time) { c.finish(opCreate, start, err, zap.Uint("user_id", actor.UserID)) }(time.Now())

	if !actor.Admin {
		return nil, gameerr.ErrForbidden.With("user %d may not create games", actor.UserID)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, gameerr.ErrInvalid.With("game name is required")
	}
	game = &models.Game{Name: name, PictureRef: pictureRef, Status: models.GameRegistration}
	if err := c.db.WithContext(ctx).Create(game).Error; err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return game, nil
}

// StartGame は参加受付を締め切る。リングは2人以上の1つの正しい巡回になっていること
func (c *Controller) StartGame(ctx context.Context, gameID uint, actor models.Actor) (game *models.Game, err error) {
	defer func(start time.Time) {
		c.finish(opStart, start, err, zap.Uint("game_id", gameID), zap.Uint("user_id", actor.UserID))
	}(time.Now())

	if !actor.Admin {
		return nil, gameerr.ErrForbidden.With("user %d may not start games", actor.UserID)
	}
	err = c.withGame(ctx, gameID, opStart, func(tx *gorm.DB, g *models.Game, st ring.Stores) error {
		n, err := st.Participants.Count(ctx, gameID)
		if err != nil {
			return err
		}
		if n < 2 {
			return gameerr.ErrNotEnoughPlayers.With("game %d has %d", gameID, n)
		}
		if _, err := c.ring.View(ctx, st, gameID); err != nil {
			return err
		}
		if !g.Status.CanTransitionTo(models.GameInProgress) {
			return gameerr.Integrity("game %d cannot move from %s", g.ID, g.Status)
		}
		now := c.now()
		g.Status = models.GameInProgress
		g.StartedAt = &now
		if err := tx.Save(g).Error; err != nil {
			return fmt.Errorf("save game: %w", err)
		}
		game = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// Join は userID をリングに加える。ErrAlreadyJoined の場合は既存の参加者も一緒に返す
func (c *Controller) Join(ctx context.Context, gameID, userID uint) (p *models.Participant, err error) {
	defer func(start time.Time) {
		c.finish(opJoin, start, err, zap.Uint("game_id", gameID), zap.Uint("user_id", userID))
	}(time.Now())

	err = c.withGame(ctx, gameID, opJoin, func(_ *gorm.DB, _ *models.Game, st ring.Stores) error {
		var err error
		p, err = c.ring.Join(ctx, st, gameID, userID)
		return err
	})
	if err != nil && !errors.Is(err, gameerr.ErrAlreadyJoined) {
		return nil, err
	}
	return p, err
}

func (c *Controller) SubmitClaim(ctx context.Context, gameID uint, in ring.ClaimInput) (claim *models.KillClaim, err error) {
	defer func(start time.Time) {
		fields := []zap.Field{zap.Uint("game_id", gameID), zap.Uint("user_id", in.PosterUserID)}
		if claim != nil {
			fields = append(fields, zap.Uint("claim_id", claim.ID), zap.Uint("victim", claim.VictimUserID))
		}
		c.finish(opSubmit, start, err, fields...)
	}(time.Now())

	err = c.withGame(ctx, gameID, opSubmit, func(_ *gorm.DB, _ *models.Game, st ring.Stores) error {
		var err error
		claim, err = c.ring.SubmitClaim(ctx, st, gameID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.feed.Invalidate(ctx, gameID)
	return claim, nil
}

// Confirm は被害者による Pending 申請の承認。生存者が1人になればゲームを終了する
func (c *Controller) Confirm(ctx context.Context, claimID uint, actor models.Actor) (*models.KillClaim, error) {
	return c.onClaim(ctx, claimID, actor, opConfirm, func(st ring.Stores) (*models.KillClaim, error) {
		return c.ring.Confirm(ctx, st, claimID, actor)
	})
}

// Deny は被害者による Pending 申請の否認
func (c *Controller) Deny(ctx context.Context, claimID uint, actor models.Actor) (*models.KillClaim, error) {
	return c.onClaim(ctx, claimID, actor, opDeny, func(st ring.Stores) (*models.KillClaim, error) {
		return c.ring.Deny(ctx, st, claimID, actor)
	})
}

// AdminResolve は Conflicting 申請を裁定する
func (c *Controller) AdminResolve(ctx context.Context, claimID uint, actor models.Actor, outcome ring.Outcome) (*models.KillClaim, error) {
	return c.onClaim(ctx, claimID, actor, opResolve, func(st ring.Stores) (*models.KillClaim, error) {
		return c.ring.AdminResolve(ctx, st, claimID, actor, outcome)
	})
}

// onClaim はロックの外で申請のゲームを引き（この列は変わらない）、ゲームをロックしてから
// fn にロック下で申請を読み直させる。
func (c *Controller) onClaim(ctx context.Context, claimID uint, actor models.Actor, op string, fn func(st ring.Stores) (*models.KillClaim, error)) (claim *models.KillClaim, err error) {
	var gameID uint
	defer func(start time.Time) {
		c.finish(op, start, err, zap.Uint("game_id", gameID), zap.Uint("user_id", actor.UserID), zap.Uint("claim_id", claimID))
	}(time.Now())

	gameID, err = claims.NewLedger(c.db.WithContext(ctx)).GameOf(ctx, claimID)
	if err != nil {
		return nil, err
	}
	err = c.withGame(ctx, gameID, op, func(tx *gorm.DB, game *models.Game, st ring.Stores) error {
		var err error
		if claim, err = fn(st); err != nil {
			return err
		}
		if claim.Status == models.ClaimVerified {
			return c.completeIfWon(ctx, tx, game, st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.feed.Invalidate(ctx, gameID)
	return claim, nil
}

func (c *Controller) completeIfWon(ctx context.Context, tx *gorm.DB, game *models.Game, st ring.Stores) error {
	w, done, err := c.ring.Winner(ctx, st, game.ID)
	if err != nil || !done {
		return err
	}
	if !game.Status.CanTransitionTo(models.GameCompleted) {
		return gameerr.Integrity("game %d cannot move from %s", game.ID, game.Status)
	}
	now := c.now()
	winner := w.UserID
	game.Status = models.GameCompleted
	game.WinnerUserID = &winner
	game.CompletedAt = &now
	if err := tx.Save(game).Error; err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	c.logger.Info("game completed", zap.Uint("game_id", game.ID), zap.Uint("winner", winner))
	return nil
}
