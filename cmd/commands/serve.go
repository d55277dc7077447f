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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/parksession"
	"github.com/numaproj/parksession/pkg/config"
	"github.com/numaproj/parksession/pkg/metrics"
	"github.com/numaproj/parksession/pkg/normalize"
	"github.com/numaproj/parksession/pkg/query"
	"github.com/numaproj/parksession/pkg/shared/logging"
	"github.com/numaproj/parksession/pkg/snapshot"
	"github.com/numaproj/parksession/pkg/sources"
	svrcmd "github.com/numaproj/parksession/server/cmd/server"
)

func NewServeCommand() *cobra.Command {
	var (
		configPath string
		insecure   bool
		port       int
		readOnly   bool
	)

	command := &cobra.Command{
		Use:   "serve",
		Short: "Start the parksession API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewLogger().Named("serve")
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, log)

			gc, err := config.LoadConfig(configPath, func(err error) {
				log.Errorw("Failed to reload configuration file", zap.Error(err))
			})
			if err != nil {
				return err
			}
			conf := gc.Get()
			if !cmd.Flags().Changed("port") {
				port = conf.Server.Port
			}
			if !cmd.Flags().Changed("insecure") {
				insecure = conf.Server.Insecure
			}
			if !cmd.Flags().Changed("read-only") {
				readOnly = conf.Server.ReadOnly
			}

			srcs, err := sources.NewAll(ctx, conf.Sources)
			if err != nil {
				return err
			}
			defer func() {
				if err := sources.CloseAll(srcs); err != nil {
					log.Warnw("Failed to close sources", zap.Error(err))
				}
			}()

			store := snapshot.NewStore()
			reloader := snapshot.NewReloader(store, srcs, func() snapshot.Settings {
				c := gc.Get()
				return snapshot.Settings{
					Tolerance: c.Tolerance,
					Policy:    c.Policy(),
					Layouts:   c.TimestampLayouts,
					Timeout:   c.Reload.Timeout,
				}
			})
			gc.OnChange(func(c config.Config) {
				log.Infow("Configuration reloaded", zap.String("schedule", c.Reload.Schedule))
				if err := reloader.SetSchedule(c.Reload.Schedule); err != nil {
					log.Errorw("Failed to update reload schedule", zap.Error(err))
				}
			})

			v := parksession.GetVersion()
			metrics.BuildInfo.WithLabelValues("serve", v.Version, v.Platform).Set(1)
			ms := metrics.NewMetricsServer(
				metrics.WithPort(conf.Metrics.Port),
				metrics.WithHealthCheckers(ctx, store),
			)
			shutdown, err := ms.Start(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(context.Background()) }()

			engine := query.NewEngine(
				query.WithTimeParser(normalize.New(normalize.WithLayouts(conf.TimestampLayouts...)).ParseTime),
				query.WithCache(conf.Cache.Size, conf.Cache.TTL),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return reloader.Run(gctx, conf.Reload.Schedule)
			})
			g.Go(func() error {
				return svrcmd.NewServer(svrcmd.ServerOptions{
					Insecure:           insecure,
					Port:               port,
					CorsAllowedOrigins: conf.Server.CorsAllowedOrigins,
					ReadOnly:           readOnly,
					Store:              store,
					Reloader:           reloader,
					Query:              engine,
				}).Start(gctx)
			})
			return g.Wait()
		},
	}
	command.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Path of the configuration file.")
	command.Flags().BoolVar(&insecure, "insecure", false, "Whether to disable TLS, defaults to the server.insecure setting.")
	command.Flags().IntVarP(&port, "port", "p", config.DefaultServerPort, "Port to listen on, defaults to the server.port setting.")
	command.Flags().BoolVar(&readOnly, "read-only", false, "Whether to reject reload requests, defaults to the server.readOnly setting.")
	return command
}
