// Package dbtest はテスト用にマイグレーション済みのデータベースを開く
package dbtest

import (
	"context"
	"testing"
	"time"

	"assassinserver/database"
	"assassinserver/models"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Open は全テーブルをマイグレーションした新しいインメモリSQLiteを返す
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	migrate(t, db)
	return db
}

// OpenPostgres はコンテナでPostgreSQLを起動し、マイグレーション済みの接続を返す。
// -short 指定時とDockerが使えない環境ではスキップする。
func OpenPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	const user, password, name = "assassin", "assassin", "assassin_test"
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(name),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		if container != nil {
			container.Terminate(context.Background())
		}
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	db, err := database.InitPostgreSQL(models.DBConfig{
		Driver:        "postgres",
		Host:          host,
		Port:          port.Int(),
		User:          user,
		Password:      password,
		Name:          name,
		SSLMode:       "disable",
		MaxRetries:    5,
		RetryInterval: time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	migrate(t, db)
	return db
}

func migrate(t testing.TB, db *gorm.DB) {
	t.Helper()
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
}
