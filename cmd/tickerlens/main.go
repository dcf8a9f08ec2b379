package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tickerlens/tickerlens/internal/auth/token"
	"github.com/tickerlens/tickerlens/internal/driver"
	"github.com/tickerlens/tickerlens/internal/migrations"
	"github.com/tickerlens/tickerlens/internal/server"
	"github.com/tickerlens/tickerlens/internal/session"
	"github.com/tickerlens/tickerlens/internal/storage"
)

func main() {
	cfg := must(readConfig())

	logger := initLogger(cfg.Environment)

	db := initDB(cfg)
	defer db.Close()

	jwtSvc := token.NewJWTService(cfg.AppName, jwt.SigningMethodEdDSA, signingKey(cfg))

	sessionSvc := session.NewService(logger, storage.NewKV(db), session.DefaultPolicy)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sessionSvc.Restore(ctx); err != nil {
		panic(err)
	}

	sessionHandler := server.NewSessionHandler(logger, sessionSvc, jwtSvc)
	assetHandler := server.NewAssetHandler(logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sessionHandler.Run(ctx, net.JoinHostPort(cfg.SessionServer.Host, cfg.SessionServer.Port))
	}()
	go func() {
		defer wg.Done()
		assetHandler.Run(ctx, net.JoinHostPort(cfg.AssetServer.Host, cfg.AssetServer.Port))
	}()

	wg.Wait()
}

func must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}

	return val
}

func initLogger(env string) *slog.Logger {
	if env == "dev" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func initDB(cfg Config) *sql.DB {
	db := must(driver.NewSQLite(cfg.Database.Name))

	migrations.Migrate(context.Background(), db)

	return db
}

// signingKey decodes the configured token key, or generates an ephemeral one
// so a dev instance runs without any key material. Ephemeral tokens stop
// verifying after a restart.
func signingKey(cfg Config) ed25519.PrivateKey {
	if cfg.SigningKey == "" {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			panic(err)
		}
		return key
	}

	keyBytes := must(base64.StdEncoding.DecodeString(cfg.SigningKey))
	key := must(jwt.ParseEdPrivateKeyFromPEM(keyBytes))

	return key.(ed25519.PrivateKey)
}
