package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/migrations"
)

// Usage: booking-migrate [up|down|version|force <version>]
func main() {
	logger := runtime.NewLogger("booking-migrate", config.String("LOG_LEVEL", "info"))

	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}

	m, err := db.NewMigrator(databaseURL, migrations.FS)
	if err != nil {
		logger.Error("create migrator", "err", err)
		os.Exit(1)
	}
	defer func() { _ = m.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "force":
		if len(os.Args) < 3 {
			err = fmt.Errorf("force requires a version")
			break
		}
		var version int
		version, err = strconv.Atoi(os.Args[2])
		if err != nil {
			err = fmt.Errorf("invalid version: %w", err)
			break
		}
		err = m.Force(version)
	case "version":
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		logger.Error("migration failed", "cmd", cmd, "err", err)
		os.Exit(1)
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.Error("read version", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "cmd", cmd, "version", version, "dirty", dirty)
}
