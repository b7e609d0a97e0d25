package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"assassinserver/models"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// LoadConfig は config.json（存在すれば）と ASSASSIN_ で始まる環境変数から設定を読み込む
func LoadConfig(filename string) (models.Config, error) {
	var config models.Config

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ASSASSIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// 設定ファイルが無い場合はデフォルト値と環境変数のみで起動する
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			v.SetConfigFile(filename)
			if err := v.ReadInConfig(); err != nil {
				return config, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("設定の解析に失敗しました: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "assassin")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.dsn", "assassin.db")
	v.SetDefault("db.max_retries", 3)
	v.SetDefault("db.retry_interval", 5*time.Second)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 30*time.Second)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 72*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
	v.SetDefault("audit.schedule", "@hourly")
}

// Open は設定に応じてPostgreSQLまたはSQLiteに接続する
func Open(config models.DBConfig, logger *zap.Logger) (*gorm.DB, error) {
	switch config.Driver {
	case "sqlite":
		return OpenSQLite(config.DSN)
	case "", "postgres":
		return InitPostgreSQL(config, logger)
	}
	return nil, fmt.Errorf("unknown db driver %q", config.Driver)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true, // 一意制約違反を gorm.ErrDuplicatedKey に変換
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}
}

func InitPostgreSQL(config models.DBConfig, logger *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Name, config.Password, config.SSLMode)

	var err error
	for i := 0; i <= config.MaxRetries; i++ {
		var gormDB *gorm.DB
		gormDB, err = gorm.Open(postgres.Open(dsn), gormConfig())
		if err == nil {
			return gormDB, nil
		}
		logger.Error("データベース接続のリトライ", zap.Int("retry", i), zap.Error(err))
		time.Sleep(config.RetryInterval)
	}
	return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
}

// OpenSQLite は開発用・テスト用のSQLite接続を返す。":memory:" の場合も同じ接続を共有するため1本に制限する。
func OpenSQLite(dsn string) (*gorm.DB, error) {
	gormDB, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return gormDB, nil
}

// AutoMigrate はゲーム関連のテーブルを作成・更新する
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Game{}, &models.Participant{}, &models.KillClaim{})
}

// ForUpdate は行ロック句を付与する。SQLiteは行ロックを持たないため書き込みロックに任せる。
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func InitRedis(config models.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", config.Addr))
	return rdb, nil
}
