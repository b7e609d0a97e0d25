// Package cache は公開申請フィードのRedisキャッシュ
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assassinserver/internal/claims"
	"assassinserver/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Feed は listClaims の結果をゲームとフィルタごとにキャッシュする。
// Get は読んだ時点の世代を返し、Put はその世代に書く。途中で Invalidate されたページは二度と読まれない。
type Feed interface {
	Get(ctx context.Context, gameID uint, filter claims.Filter) (list []models.KillClaim, version int64, ok bool)
	Put(ctx context.Context, gameID uint, version int64, filter claims.Filter, list []models.KillClaim)
	// Invalidate はゲームのページを全て無効にする
	Invalidate(ctx context.Context, gameID uint)
}

// Nop はRedis未設定時のFeed。常にミスする。
type Nop struct{}

func (Nop) Get(context.Context, uint, claims.Filter) ([]models.KillClaim, int64, bool) {
	return nil, 0, false
}
func (Nop) Put(context.Context, uint, int64, claims.Filter, []models.KillClaim) {}
func (Nop) Invalidate(context.Context, uint) {}

// RedisFeed はゲームごとの世代カウンタの下にページを置く。Invalidate で世代を進め、
// 古いページはTTLで消える。
type RedisFeed struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisFeed(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, ttl: ttl, logger: logger}
}

func versionKey(gameID uint) string {
	return fmt.Sprintf("assassin:claims:%d:version", gameID)
}

func pageKey(gameID uint, version int64, f claims.Filter) string {
	return fmt.Sprintf("assassin:claims:%d:v%d:%s:%d:%d", gameID, version, f.Status, f.PosterUserID, f.VictimUserID)
}

func (r *RedisFeed) version(ctx context.Context, gameID uint) (int64, error) {
	v, err := r.rdb.Get(ctx, versionKey(gameID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *RedisFeed) Get(ctx context.Context, gameID uint, filter claims.Filter) ([]models.KillClaim, int64, bool) {
	v, err := r.version(ctx, gameID)
	if err != nil {
		// -1 の世代には書き戻さない
		r.logger.Warn("claim feed version lookup failed", zap.Uint("game_id", gameID), zap.Error(err))
		return nil, -1, false
	}
	data, err := r.rdb.Get(ctx, pageKey(gameID, v, filter)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("claim feed read failed", zap.Uint("game_id", gameID), zap.Error(err))
		}
		return nil, v, false
	}
	var list []models.KillClaim
	if err := json.Unmarshal(data, &list); err != nil {
		r.logger.Warn("claim feed entry is corrupt", zap.Uint("game_id", gameID), zap.Error(err))
		return nil, v, false
	}
	return list, v, true
}

func (r *RedisFeed) Put(ctx context.Context, gameID uint, version int64, filter claims.Filter, list []models.KillClaim) {
	if version < 0 {
		return
	}
	data, err := json.Marshal(list)
	if err != nil {
		r.logger.Warn("claim feed entry encode failed", zap.Uint("game_id", gameID), zap.Error(err))
		return
	}
	if err := r.rdb.Set(ctx, pageKey(gameID, version, filter), data, r.ttl).Err(); err != nil {
		r.logger.Warn("claim feed write failed", zap.Uint("game_id", gameID), zap.Error(err))
	}
}

func (r *RedisFeed) Invalidate(ctx context.Context, gameID uint) {
	if err := r.rdb.Incr(ctx, versionKey(gameID)).Err(); err != nil {
		// 古いページはTTLで消える
		r.logger.Warn("claim feed invalidation failed", zap.Uint("game_id", gameID), zap.Error(err))
	}
}
