// pgprobe reads the live snapshot of a real PostgreSQL instance and prints
// it in the same format the scan API accepts, so a captured production
// snapshot can be replayed against a local table.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/jnidzwetzki/pg-debug-scan/pkg/snapshot"
)

type pgConfig struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SSLMode    string
	Interval   time.Duration
	Count      int
}

func main() {
	cfg := parseFlags()

	if err := runProbe(cfg); err != nil {
		log.Fatalf("probe failed: %v", err)
	}
}

func parseFlags() pgConfig {
	var (
		dbHost     = flag.String("db-host", "localhost", "PostgreSQL host")
		dbPort     = flag.String("db-port", "5432", "PostgreSQL port")
		dbUser     = flag.String("db-user", "postgres", "PostgreSQL user")
		dbPassword = flag.String("db-password", "postgres", "PostgreSQL password")
		dbName     = flag.String("db-name", "postgres", "PostgreSQL database")
		sslMode    = flag.String("ssl-mode", "disable", "PostgreSQL sslmode")
		interval   = flag.Duration("interval", time.Second, "delay between samples")
		count      = flag.Int("count", 1, "number of snapshots to capture")
	)

	flag.Parse()

	return pgConfig{
		DBHost:     *dbHost,
		DBPort:     *dbPort,
		DBUser:     *dbUser,
		DBPassword: *dbPassword,
		DBName:     *dbName,
		SSLMode:    *sslMode,
		Interval:   *interval,
		Count:      *count,
	}
}

func runProbe(cfg pgConfig) error {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("open connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	for i := 0; i < cfg.Count; i++ {
		if i > 0 {
			time.Sleep(cfg.Interval)
		}

		var raw string
		if err := db.QueryRow("SELECT pg_current_snapshot()::text").Scan(&raw); err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}

		// round-trip through the parser to normalize and reject garbage
		snap, err := snapshot.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse snapshot %q: %w", raw, err)
		}

		fmt.Println(snap.Format())
	}

	return nil
}
