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

// Package redis reads gate events from a redis stream.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/numaproj/parksession/pkg/config"
	"github.com/numaproj/parksession/pkg/events"
	redisclient "github.com/numaproj/parksession/pkg/shared/clients/redis"
	"github.com/numaproj/parksession/pkg/shared/logging"
)

const (
	// DefaultPageSize is the XRANGE page size.
	DefaultPageSize int64 = 500
	// PayloadField holds a whole JSON encoded event. Entries without it are read field by field.
	PayloadField = "payload"
)

type Source struct {
	name     string
	stream   string
	pageSize int64
	client   *redisclient.RedisClient
}

func New(cfg config.SourceConfig) *Source {
	client := redisclient.NewRedisClient(&goredis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(cfg.Name, cfg.Stream, cfg.PageSize, client)
}

func NewWithClient(name, stream string, pageSize int64, client *redisclient.RedisClient) *Source {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Source{name: name, stream: stream, pageSize: pageSize, client: client}
}

func (s *Source) Name() string {
	return s.name
}

// Fetch pages through as many entries as the stream held when the fetch started. Entries
// appended meanwhile are left for the next fetch.
func (s *Source) Fetch(ctx context.Context) (events.Batch, error) {
	log := logging.FromContext(ctx).With("source", s.name, "stream", s.stream)
	total, err := s.client.StreamLength(ctx, s.stream)
	if err != nil {
		return events.Batch{}, fmt.Errorf("failed to get length of stream %q, %w", s.stream, err)
	}
	batch := events.Batch{Events: make([]events.RawEvent, 0, total)}
	after := redisclient.StreamStart
	for read := int64(0); read < total; {
		count := min(s.pageSize, total-read)
		msgs, err := s.client.StreamRange(ctx, s.stream, after, count)
		if err != nil {
			return events.Batch{}, err
		}
		read += int64(len(msgs))
		for _, msg := range msgs {
			e, err := decode(msg.Values)
			if err != nil {
				log.Debugw("Skipping stream entry", zap.String("id", msg.ID), zap.Error(err))
				batch.Skipped++
				continue
			}
			batch.Events = append(batch.Events, e)
		}
		if int64(len(msgs)) < count {
			// trimmed while paging
			break
		}
		after = msgs[len(msgs)-1].ID
	}
	return batch, nil
}

func (s *Source) Close() error {
	return s.client.Close()
}

func decode(values map[string]interface{}) (events.RawEvent, error) {
	if payload, ok := values[PayloadField]; ok {
		switch p := payload.(type) {
		case string:
			return events.DecodeJSON([]byte(p))
		case []byte:
			return events.DecodeJSON(p)
		}
	}
	return events.FromValues(values)
}
