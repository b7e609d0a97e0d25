package models

import "time"

// Config 構造体はサーバー全体の設定情報を保持します。
// config.json と ASSASSIN_ で始まる環境変数から読み込まれます。
type Config struct {
	DB    DBConfig    `mapstructure:"db"`
	Redis RedisConfig `mapstructure:"redis"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	JWT   JWTConfig   `mapstructure:"jwt"`
	Log   LogConfig   `mapstructure:"log"`
	Audit AuditConfig `mapstructure:"audit"`
}

// DBConfig はデータベース接続の設定情報
type DBConfig struct {
	Driver        string        `mapstructure:"driver"` // "postgres" または "sqlite"
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	Name          string        `mapstructure:"name"`
	SSLMode       string        `mapstructure:"sslmode"`
	DSN           string        `mapstructure:"dsn"` // sqlite のファイルパス
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// RedisConfig は申請フィード用キャッシュの設定。Addr が空ならキャッシュ無効。
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type HTTPConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "json" または "console"
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AuditConfig はリング検査ジョブのスケジュール（cron形式）。空なら起動しない。
type AuditConfig struct {
	Schedule string `mapstructure:"schedule"`
}
