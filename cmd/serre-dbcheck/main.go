package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"serreclub/internal/shared"
	"serreclub/internal/storage"

	"github.com/sirupsen/logrus"
)

var counted = []string{"members", "login_history", "population", "annonces", "serre_bacs", "serre_feed_items"}

func main() {
	log := logrus.New()

	cfg, err := shared.LoadServerConfig(os.Getenv("SERRE_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		db        *sql.DB
		listQuery string
	)
	switch cfg.Store {
	case shared.StoreSQLite:
		db, err = storage.OpenSQLite(cfg.DBPath)
		listQuery = `SELECT name FROM sqlite_master WHERE type='table' ORDER BY name;`
	case shared.StorePostgres:
		db, err = storage.OpenPostgres(ctx, cfg.DatabaseURL)
		listQuery = `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name;`
	default:
		log.Fatalf("store %q has no tables to check", cfg.Store)
	}
	if err != nil {
		log.Fatalf("open %s: %v", cfg.Store, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, listQuery)
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}
	tables := map[string]bool{}
	fmt.Println("Tables:")
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			log.Fatalf("scan: %v", err)
		}
		tables[name] = true
		fmt.Println(" -", name)
	}
	rows.Close()

	for _, t := range counted {
		if !tables[t] {
			fmt.Printf("%s: missing (run serre-server once to migrate)\n", t)
			continue
		}
		var n int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+t).Scan(&n); err != nil {
			log.WithError(err).WithField("table", t).Warn("count failed")
			continue
		}
		fmt.Printf("%s: %d\n", t, n)
	}
}
