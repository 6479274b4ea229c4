package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdityaRanjanp/LumenPass/internal/config"
	"github.com/AdityaRanjanp/LumenPass/internal/db"
	"github.com/AdityaRanjanp/LumenPass/internal/httpapi"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/secure"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/service"
	sqlitestore "github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store/sqlite"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/token"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "lumenpass-server ", log.LstdFlags|log.LUTC)

	if cfg.UsingDevAdminToken() {
		logger.Printf("WARNING: using the default dev admin token; set LUMENPASS_ADMIN_TOKEN_HASH in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	writer := db.NewWriter(conn)
	defer writer.Close()

	// Server-held secrets
	tokenKey, err := secure.LoadOrCreateKey(cfg.TokenKeyPath)
	if err != nil {
		logger.Fatalf("token key: %v", err)
	}
	dataKey, err := secure.LoadOrCreateKey(cfg.DataKeyPath)
	if err != nil {
		logger.Fatalf("data key: %v", err)
	}

	codec, err := token.NewCodec(tokenKey)
	if err != nil {
		logger.Fatalf("token codec: %v", err)
	}
	sealer, err := secure.NewSealer(dataKey)
	if err != nil {
		logger.Fatalf("sealer: %v", err)
	}

	// Stores
	creds := sqlitestore.NewCredentialStore(conn, writer)
	attempts := sqlitestore.NewScanAttemptStore(conn, writer)

	// Services
	issuer := service.NewIssuerService(codec, sealer, creds, service.IssuePolicy{
		DefaultTTL: time.Duration(cfg.DefaultTTLMinutes) * time.Minute,
		MaxTTL:     time.Duration(cfg.MaxTTLMinutes) * time.Minute,
	}, logger)
	verifier := service.NewVerifyService(codec, creds, attempts, logger)

	archiver := service.NewArchiver(creds, service.ArchiverConfig{
		RetentionDays: cfg.ArchiveRetentionDays,
		IntervalHours: cfg.ArchiveIntervalHours,
	}, logger)
	archiver.Start(ctx)
	defer archiver.Stop()

	// The local-camera adapter needs device-specific FrameSource and
	// FrameDecoder implementations; hosted deployments run without it
	// and rely on the /v1/scan path alone.

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger,
		Addr:           cfg.HTTPAddr,
		Issuer:         issuer,
		Verifier:       verifier,
		Attempts:       attempts,
		AdminTokenHash: []byte(cfg.AdminTokenHash),
		AdminToken:     cfg.AdminToken,
		QRImageSize:    cfg.QRImageSize,
	})

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
