package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ritetech/intake/auth"
	"github.com/ritetech/intake/internal/access"
	"github.com/ritetech/intake/internal/config"
	"github.com/ritetech/intake/internal/contacts"
	"github.com/ritetech/intake/internal/handlers"
	"github.com/ritetech/intake/internal/masters"
	"github.com/ritetech/intake/internal/records"
	"github.com/ritetech/intake/internal/schema"
	"github.com/ritetech/intake/internal/server"
	"github.com/ritetech/intake/internal/tabular"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := openDB(cfg.Database)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	store, err := tabular.NewStore(db, cfg.Database.Timeout)
	if err != nil {
		log.Fatalf("init gateway: %v", err)
	}

	reg := schema.NewRegistry()
	cache := masters.NewCache(store, reg, cfg.App.MasterStaleness)
	cache.RetryAttempts = cfg.App.RetryAttempts
	cache.RetryBackoff = cfg.App.RetryBackoff

	authn := access.NewAuthenticator(cache, auth.BcryptVerifier{}, cfg.App.LockoutThreshold, cfg.App.LockoutWindow)

	recs := records.NewStore(store, reg, cache)
	recs.RetryAttempts = cfg.App.RetryAttempts
	recs.RetryBackoff = cfg.App.RetryBackoff

	if err := seedAdmin(store); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	core := &handlers.Core{
		Auth:       authn,
		Masters:    cache,
		Records:    recs,
		Contacts:   contacts.NewResolver(cache),
		Registry:   reg,
		SessionTTL: cfg.App.SessionTTL,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.New(core),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("listening on :%s (driver=%s)", cfg.Server.Port, cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func openDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if os.Getenv("DB_DEBUG") == "1" {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}
	if cfg.Driver == "postgres" {
		return gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	}
	return gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
}

// seedAdmin bootstraps the Users table from SEED_ADMIN=user:pass when the
// table is still empty, so a fresh deployment has a first login.
func seedAdmin(gw tabular.Gateway) error {
	raw := os.Getenv("SEED_ADMIN")
	if raw == "" {
		return nil
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		log.Printf("ignoring malformed SEED_ADMIN")
		return nil
	}
	ctx := context.Background()
	table, err := gw.ReadTable(ctx, schema.TableUsers)
	if err != nil {
		return err
	}
	if len(table.Rows) > 0 {
		return nil
	}
	hash, err := auth.HashPassword(parts[1])
	if err != nil {
		return err
	}
	row := tabular.Row{
		schema.ColUsername:     parts[0],
		schema.ColDisplayName:  parts[0],
		schema.ColPasswordHash: hash,
		schema.ColRole:         string(access.RoleAdmin),
		schema.ColClients:      "ALL",
	}
	log.Printf("seeding admin user %q", parts[0])
	return gw.AppendRows(ctx, schema.TableUsers, []tabular.Row{row})
}
