package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assassinserver/auth"
	"assassinserver/database" //PostgreSQL/SQLiteとRedisの初期化
	"assassinserver/handlers" //HTTPリクエストの処理
	"assassinserver/internal/cache"
	"assassinserver/internal/lifecycle"
	"assassinserver/models"
	"assassinserver/utils" //ロガー、メトリクス、リング検査ジョブ

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the game API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}

	root := &cobra.Command{
		Use:          "assassinserver",
		Short:        "Target-ring assassination game server",
		SilenceUsage: true,
		RunE:         serve.RunE, // サブコマンド無しは serve
	}
	root.PersistentFlags().StringVar(&configFile, "config", "config.json", "path to config file")
	root.AddCommand(serve, newMigrateCommand(&configFile), newTokenCommand(&configFile))
	return root
}

func newMigrateCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the game tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, logger, err := setup(*configFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.Open(config.DB, logger)
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("マイグレーションに失敗しました: %w", err)
			}
			logger.Info("マイグレーション完了", zap.String("driver", config.DB.Driver))
			return nil
		},
	}
}

// 開発用に外部IDプロバイダの代わりにトークンを発行する
func newTokenCommand(configFile *string) *cobra.Command {
	var userID uint
	var admin bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return errors.New("--user is required")
			}
			config, err := database.LoadConfig(*configFile)
			if err != nil {
				return err
			}
			signer, err := auth.NewSigner(config.JWT)
			if err != nil {
				return err
			}
			tok, err := signer.GenerateToken(userID, admin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "user id carried by the token")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator rights")
	return cmd
}

func setup(configFile string) (models.Config, *zap.Logger, error) {
	config, err := database.LoadConfig(configFile)
	if err != nil {
		return config, nil, err
	}
	logger, err := utils.InitLogger(config.Log) // ロガーの初期化
	if err != nil {
		return config, nil, err
	}
	return config, logger, nil
}

func runServe(ctx context.Context, configFile string) error {
	config, logger, err := setup(configFile)
	if err != nil {
		return err
	}
	defer logger.Sync() // ロガーのクリーンアップ

	signer, err := auth.NewSigner(config.JWT)
	if err != nil {
		return err
	}

	// 非同期でDBとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	dbErr := make(chan error, 1)
	redisErr := make(chan error, 1)

	go func() {
		var err error
		db, err = database.Open(config.DB, logger)
		if err == nil {
			err = database.AutoMigrate(db)
		}
		dbErr <- err
	}()

	go func() {
		if config.Redis.Addr == "" {
			redisErr <- nil // キャッシュ無しで起動
			return
		}
		var err error
		rdb, err = database.InitRedis(config.Redis, logger)
		redisErr <- err
	}()

	// 2つの初期化が完了するのを待つ
	if err := <-dbErr; err != nil {
		return fmt.Errorf("データベースの初期化に失敗しました: %w", err)
	}
	if err := <-redisErr; err != nil {
		return fmt.Errorf("Redisの初期化に失敗しました: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []lifecycle.Option{lifecycle.WithMetrics(utils.NewMetrics(reg))}
	if rdb != nil {
		defer rdb.Close()
		opts = append(opts, lifecycle.WithFeed(cache.NewRedisFeed(rdb, config.Redis.TTL, logger)))
	}
	controller := lifecycle.New(db, logger, opts...)

	// クーロンスケジューラのセットアップと呼び出し
	auditor, err := utils.StartRingAuditor(controller, config.Audit.Schedule, logger)
	if err != nil {
		return fmt.Errorf("リング検査ジョブの登録に失敗しました: %w", err)
	}
	if auditor != nil {
		defer auditor.Stop()
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Controller:   controller,
		Signer:       signer,
		Logger:       logger,
		Gatherer:     reg,
		AllowOrigins: config.HTTP.AllowOrigins,
	})

	server := &http.Server{Addr: config.HTTP.Addr, Handler: router}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("シャットダウンに失敗しました", zap.Error(err))
		}
	}()

	logger.Info("サーバー起動", zap.String("addr", config.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("サーバー停止")
	return nil
}
