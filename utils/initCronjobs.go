package utils

import (
	"context"

	"assassinserver/internal/lifecycle"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartRingAuditor は進行中ゲームのリングを定期的に検査するジョブを起動する。
// 検査は読み取りのみで、壊れたリングはログに残すだけ。schedule が空なら何もしない。
func StartRingAuditor(controller *lifecycle.Controller, schedule string, logger *zap.Logger) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		logger.Info("リング検査を開始")
		findings, err := controller.AuditRings(context.Background())
		if err != nil {
			logger.Error("リング検査に失敗しました", zap.Error(err))
			return
		}
		for _, f := range findings {
			logger.Error("リングの整合性違反", zap.Uint("game_id", f.GameID), zap.Error(f.Err))
		}
		logger.Info("リング検査完了", zap.Int("violations", len(findings)))
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
