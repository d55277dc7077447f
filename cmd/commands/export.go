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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/numaproj/parksession/pkg/config"
	"github.com/numaproj/parksession/pkg/export"
	"github.com/numaproj/parksession/pkg/normalize"
	"github.com/numaproj/parksession/pkg/query"
	"github.com/numaproj/parksession/pkg/shared/logging"
	"github.com/numaproj/parksession/pkg/snapshot"
	"github.com/numaproj/parksession/pkg/sources"
)

func NewExportCommand() *cobra.Command {
	var (
		configPath string
		format     string
		out        string
		status     string
		expression string
		s3Bucket   string
		s3Key      string
		s3Region   string
		s3Endpoint string
	)

	command := &cobra.Command{
		Use:   "export",
		Short: "Load every configured source once and export the sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewLogger().Named("export")
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, log)

			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			gc, err := config.LoadConfig(configPath, nil)
			if err != nil {
				return err
			}
			conf := gc.Get()
			srcs, err := sources.NewAll(ctx, conf.Sources)
			if err != nil {
				return err
			}
			defer func() {
				if err := sources.CloseAll(srcs); err != nil {
					log.Warnw("Failed to close sources", zap.Error(err))
				}
			}()

			reloader := snapshot.NewReloader(snapshot.NewStore(), srcs, func() snapshot.Settings {
				return snapshot.Settings{
					Tolerance: conf.Tolerance,
					Policy:    conf.Policy(),
					Layouts:   conf.TimestampLayouts,
					Timeout:   conf.Reload.Timeout,
				}
			})
			snap, err := reloader.ReloadNow(ctx)
			if err != nil {
				return err
			}
			engine := query.NewEngine(query.WithTimeParser(normalize.New(normalize.WithLayouts(conf.TimestampLayouts...)).ParseTime))
			sessions, err := engine.FilterSessions(snap, query.Params{Status: query.Status(status), Expr: expression})
			if err != nil {
				return err
			}

			if s3Bucket != "" {
				dest, err := export.NewS3Destination(ctx, s3Bucket, s3Region, s3Endpoint)
				if err != nil {
					return err
				}
				key, err := dest.Upload(ctx, s3Key, f, sessions)
				if err != nil {
					return err
				}
				log.Infow("Exported sessions", zap.Int("sessions", len(sessions)), zap.String("bucket", s3Bucket), zap.String("key", key))
				return nil
			}
			if out == "" || out == "-" {
				return export.Write(cmd.OutOrStdout(), f, sessions)
			}
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %q, %w", out, err)
			}
			if err := export.Write(file, f, sessions); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			log.Infow("Exported sessions", zap.Int("sessions", len(sessions)), zap.String("path", out))
			return nil
		},
	}
	command.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path of the configuration file.")
	command.Flags().StringVarP(&format, "format", "f", string(export.FormatCSV), "Export format, csv or jsonl.")
	command.Flags().StringVarP(&out, "out", "o", "", "File to write, stdout when empty.")
	command.Flags().StringVar(&status, "status", "", "Only export matched or unmatched sessions.")
	command.Flags().StringVar(&expression, "expr", "", "Boolean expression sessions must satisfy.")
	command.Flags().StringVar(&s3Bucket, "s3-bucket", "", "Upload the export to this bucket instead of writing it locally.")
	command.Flags().StringVar(&s3Key, "s3-key", "", "Object key of the upload, generated when empty.")
	command.Flags().StringVar(&s3Region, "s3-region", "", "Region of the bucket.")
	command.Flags().StringVar(&s3Endpoint, "s3-endpoint", "", "Custom S3 endpoint, e.g. for MinIO.")
	return command
}
