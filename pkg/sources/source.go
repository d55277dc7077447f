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

// Package sources fetches full snapshots of gate events from the configured backends.
package sources

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/numaproj/parksession/pkg/config"
	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/sources/file"
	"github.com/numaproj/parksession/pkg/sources/kafka"
	"github.com/numaproj/parksession/pkg/sources/nats"
	"github.com/numaproj/parksession/pkg/sources/postgres"
	"github.com/numaproj/parksession/pkg/sources/redis"
	"github.com/numaproj/parksession/pkg/sources/s3"
)

// Source returns every event it holds on each Fetch. Records it cannot decode are counted in
// Batch.Skipped; a transport failure fails the whole Fetch.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (events.Batch, error)
	Close() error
}

// New builds the source described by cfg.
func New(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case config.SourceFile:
		return file.New(cfg.Name, cfg.Path, cfg.Format), nil
	case config.SourceS3:
		return s3.New(ctx, cfg)
	case config.SourcePostgres:
		return postgres.New(cfg)
	case config.SourceRedis:
		return redis.New(cfg), nil
	case config.SourceKafka:
		return kafka.New(ctx, cfg)
	case config.SourceNATS:
		return nats.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported source type %q", cfg.Type)
	}
}

// NewAll builds every configured source. On error the sources built so far are closed.
func NewAll(ctx context.Context, cfgs []config.SourceConfig) ([]Source, error) {
	list := make([]Source, 0, len(cfgs))
	for _, cfg := range cfgs {
		s, err := New(ctx, cfg)
		if err != nil {
			_ = CloseAll(list)
			return nil, fmt.Errorf("failed to create source %q, %w", cfg.Name, err)
		}
		list = append(list, s)
	}
	return list, nil
}

// CloseAll closes every source, combining their errors.
func CloseAll(list []Source) error {
	var err error
	for _, s := range list {
		if cerr := s.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close source %q, %w", s.Name(), cerr))
		}
	}
	return err
}
