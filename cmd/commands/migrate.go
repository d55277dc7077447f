/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/numaproj/parksession/pkg/shared/logging"
	sharedutil "github.com/numaproj/parksession/pkg/shared/util"
	"github.com/numaproj/parksession/pkg/sources/postgres"
)

func NewMigrateCommand() *cobra.Command {
	var (
		databaseURL string
		timeout     time.Duration
	)

	command := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the gate event table of a postgres source",
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return fmt.Errorf("--database-url is required")
			}
			log := logging.NewLogger().Named("migrate")
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			db, err := postgres.Open(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(db); err != nil {
				return err
			}
			log.Info("Database migrated")
			return nil
		},
	}
	command.Flags().StringVar(&databaseURL, "database-url", sharedutil.LookupEnvStringOr("PARKSESSION_DATABASE_URL", ""), "Postgres connection URL, defaults to $PARKSESSION_DATABASE_URL.")
	command.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for the database.")
	return command
}
