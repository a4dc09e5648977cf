// Worker sweeps expired sessions and prunes audit history past retention on
// a fixed interval. The server carries the same janitor in-process; run the
// worker standalone when one sweeper should serve several server replicas.
// Set DATABASE_URL (or DATA_DIR for SQLite) and CLEANUP_INTERVAL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	auditrepo "github.com/moneywright/moneywright/internal/audit/repository"
	"github.com/moneywright/moneywright/internal/config"
	"github.com/moneywright/moneywright/internal/db"
	sessionrepo "github.com/moneywright/moneywright/internal/session/repository"
	sessionservice "github.com/moneywright/moneywright/internal/session/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseDSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	sessions := sessionrepo.NewSQLRepository(conn)
	audits := auditrepo.NewSQLRepository(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	interval := cfg.CleanupEvery()
	log.Printf("worker: sweeping every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep(ctx, sessions, audits)
	for {
		select {
		case <-ctx.Done():
			log.Println("worker: stopped")
			return
		case <-ticker.C:
			sweep(ctx, sessions, audits)
		}
	}
}

func sweep(ctx context.Context, sessions *sessionrepo.SQLRepository, audits *auditrepo.SQLRepository) {
	now := time.Now().UTC()

	removed, err := sessions.DeleteExpired(ctx, now)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("worker: session sweep failed: %v", err)
		}
		return
	}

	pruned, err := audits.DeleteOlderThan(ctx, now.Add(-sessionservice.AuditRetention))
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("worker: audit prune failed: %v", err)
		}
		return
	}

	if removed > 0 || pruned > 0 {
		log.Printf("worker: removed %d expired sessions, pruned %d audit rows", removed, pruned)
	}
}
