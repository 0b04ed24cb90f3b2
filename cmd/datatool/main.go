// Package main provides the dataset operations tool for the canonical
// nutrition store: importing build artifacts, auditing stored rows, and
// running schema migrations.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/infrastructure/persistence/canonical"
	"github.com/macrocart/v2/internal/infrastructure/persistence/migrations"
	"github.com/macrocart/v2/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "import":
		code = runImport(os.Args[2:])
	case "audit":
		code = runAudit(os.Args[2:])
	case "migrate":
		code = runMigrate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		usage()
		code = 2
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: datatool <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  import   Load a dataset artifact into the canonical store")
	fmt.Fprintln(os.Stderr, "  audit    Validate stored canonical rows against the ingestion gate")
	fmt.Fprintln(os.Stderr, "  migrate  Manage the canonical store schema (postgres only)")
}

// runImport streams a dataset artifact into the canonical store and prints
// the import report.
func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file path")
	dataset := fs.String("dataset", "", "Dataset reference: local path or s3://bucket/key (defaults to the configured bucket)")
	timeout := fs.Duration("timeout", 10*time.Minute, "Import timeout")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	fs.Parse(args)

	cfg, log, code := bootstrap(*configPath)
	if code != 0 {
		return code
	}
	defer log.Sync()

	db, err := canonical.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open canonical store: %v\n", err)
		return 1
	}
	defer closeDB(db)

	store, err := canonical.NewStore(db, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize canonical store: %v\n", err)
		return 1
	}

	src, err := canonical.OpenSource(&cfg.AWS, *dataset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve dataset source: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := canonical.NewLoader(store, log).Load(ctx, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}

	if *asJSON {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("Imported:   %d\n", report.Imported)
	fmt.Printf("Rejected:   %d\n", len(report.Rejected))
	fmt.Printf("Collisions: %d\n", len(report.Collisions))
	for _, rejected := range report.Rejected {
		fmt.Printf("  line %d (%s): %s\n", rejected.Line, rejected.Key, rejected.Reason)
	}
	return 0
}

type invalidRow struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

type auditReport struct {
	Scanned int          `json:"scanned"`
	Invalid []invalidRow `json:"invalid,omitempty"`
}

// runAudit scans every stored canonical row through the same validation the
// importer applies. Rows can drift out of the gate when the gate tightens
// between releases; the audit finds them without re-importing.
func runAudit(args []string) int {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file path")
	batchSize := fs.Int("batch", 500, "Scan batch size")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	fs.Parse(args)

	cfg, log, code := bootstrap(*configPath)
	if code != 0 {
		return code
	}
	defer log.Sync()

	db, err := canonical.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open canonical store: %v\n", err)
		return 1
	}
	defer closeDB(db)

	report := auditReport{}
	var batch []canonical.RowModel
	result := db.FindInBatches(&batch, *batchSize, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			report.Scanned++
			row := canonical.ModelToRow(&batch[i])
			if err := row.Validate(); err != nil {
				report.Invalid = append(report.Invalid, invalidRow{
					Key:    batch[i].Key,
					Reason: err.Error(),
				})
			}
		}
		return nil
	})
	if result.Error != nil {
		fmt.Fprintf(os.Stderr, "Audit scan failed: %v\n", result.Error)
		return 1
	}

	if *asJSON {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Scanned: %d\n", report.Scanned)
		fmt.Printf("Invalid: %d\n", len(report.Invalid))
		for _, inv := range report.Invalid {
			fmt.Printf("  %s: %s\n", inv.Key, inv.Reason)
		}
	}

	if len(report.Invalid) > 0 {
		return 1
	}
	return 0
}

// runMigrate manages the postgres schema through golang-migrate. The sqlite
// development store migrates on open and never needs this path.
func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Configuration file path")
	down := fs.Bool("down", false, "Roll back one migration instead of migrating up")
	steps := fs.Int("steps", 0, "Run exactly n steps (positive = up, negative = down)")
	force := fs.Int("force", -1, "Force the schema version without running migrations")
	showVersion := fs.Bool("version", false, "Print the current schema version and exit")
	fs.Parse(args)

	cfg, log, code := bootstrap(*configPath)
	if code != 0 {
		return code
	}
	defer log.Sync()

	if cfg.Database.Driver != "postgres" {
		fmt.Fprintln(os.Stderr, "The migrate command applies to the postgres driver only")
		return 2
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Username,
		cfg.Database.Password, cfg.Database.Database, cfg.Database.SSLMode)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	migrator, err := migrations.New(db, cfg.Database.Database, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		return 1
	}

	switch {
	case *showVersion:
		version, dirty, err := migrator.Version()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read schema version: %v\n", err)
			return 1
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
	case *force >= 0:
		if err := migrator.Force(*force); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to force schema version: %v\n", err)
			return 1
		}
		fmt.Printf("Forced schema version %d\n", *force)
	case *steps != 0:
		if err := migrator.Steps(*steps); err != nil {
			fmt.Fprintf(os.Stderr, "Migration steps failed: %v\n", err)
			return 1
		}
		fmt.Printf("Ran %d migration steps\n", *steps)
	case *down:
		if err := migrator.Down(); err != nil {
			fmt.Fprintf(os.Stderr, "Rollback failed: %v\n", err)
			return 1
		}
		fmt.Println("Rolled back one migration")
	default:
		if err := migrator.Up(); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			return 1
		}
		fmt.Println("Migrations applied")
	}
	return 0
}

func bootstrap(configPath string) (*config.Config, *zap.Logger, int) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return nil, nil, 1
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		Development: cfg.App.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return nil, nil, 1
	}

	return cfg, log, 0
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
