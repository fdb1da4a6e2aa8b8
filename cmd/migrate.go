package cmd

import (
	"strconv"

	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kelmah-platform/kelmah-payout-service/db"
	"github.com/kelmah-platform/kelmah-payout-service/db/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema migration helpers for the payouts database",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Fatalf("Error calling help command: %s", err.Error())
			}
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up [count]",
		Short: "Migrates database up [count] migrations",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			bindFlags(cmd)
			runMigrations(migrate.Up, args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down count",
		Short: "Migrates database down [count] migrations",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			bindFlags(cmd)
			runMigrations(migrate.Down, args)
		},
	})

	return cmd
}

func runMigrations(dir migrate.MigrationDirection, args []string) {
	count := 0
	if len(args) > 0 {
		var err error
		count, err = strconv.Atoi(args[0])
		if err != nil {
			log.Fatalf("Invalid migration count %q: %s", args[0], err.Error())
		}
	}

	applied, err := db.Migrate(global.DatabaseURL, dir, count, migrations.FS)
	if err != nil {
		log.Fatalf("Error running migrations: %s", err.Error())
	}
	log.Infof("Successfully applied %d migrations", applied)
}
