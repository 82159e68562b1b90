package main

import (
	"os"
	"strings"

	"github.com/nimasrn/drgame-ledger/internal/config"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
)

// usage: cli [up|status|down] --env=.env --dir=./migrations
func main() {
	envPath := config.EnvPathFromArgs(os.Args)
	if envPath == "" {
		if _, err := os.Stat(".env"); err == nil {
			envPath = ".env"
		}
	}
	if err := config.Load(envPath); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pgConf := config.Get().PostgresWrite()
	dir := getMigrationPath()
	if dir == "" {
		os.Exit(1)
	}

	var err error
	switch cmd := getCommand(); cmd {
	case "up":
		err = pg.Migrate(pgConf, dir)
	case "status":
		err = pg.MigrationStatus(pgConf, dir)
	case "down":
		err = pg.Rollback(pgConf, dir)
	default:
		logger.Error("unknown command", "command", cmd)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
		os.Exit(1)
	}
}

func getCommand() string {
	for _, v := range os.Args[1:] {
		if !strings.HasPrefix(v, "--") {
			return v
		}
	}
	return "up"
}

func getMigrationPath() string {
	dir := "./migrations"
	for _, v := range os.Args {
		if strings.HasPrefix(v, "--dir=") {
			dir = strings.TrimPrefix(v, "--dir=")
		}
	}
	if _, err := os.Stat(dir); err != nil {
		logger.Error("failed to open the migrations dir", "dir", dir, "error", err)
		return ""
	}
	return dir
}
