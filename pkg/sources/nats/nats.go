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

// Package nats replays a JetStream stream through an ephemeral pull consumer.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/numaproj/parksession/pkg/config"
	"github.com/numaproj/parksession/pkg/events"
	natsclient "github.com/numaproj/parksession/pkg/shared/clients/nats"
	"github.com/numaproj/parksession/pkg/shared/logging"
)

const (
	DefaultBatchSize = 256
	DefaultFetchWait = 2 * time.Second
)

type Source struct {
	name      string
	stream    string
	subject   string
	batchSize int
	fetchWait time.Duration
	client    *natsclient.Client
}

type Option func(*Source)

// WithFetchWait bounds how long a single pull waits for messages.
func WithFetchWait(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.fetchWait = d
		}
	}
}

func New(ctx context.Context, cfg config.SourceConfig, opts ...Option) (*Source, error) {
	client, err := natsclient.NewNATSClient(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	return NewWithClient(cfg.Name, cfg.Stream, cfg.Subject, int(cfg.PageSize), client, opts...), nil
}

// NewWithClient reads stream through client. An empty subject reads every subject of the stream.
func NewWithClient(name, stream, subject string, batchSize int, client *natsclient.Client, opts ...Option) *Source {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	s := &Source{
		name:      name,
		stream:    stream,
		subject:   subject,
		batchSize: batchSize,
		fetchWait: DefaultFetchWait,
		client:    client,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Source) Name() string {
	return s.name
}

// Fetch reads as many messages as the stream held when the fetch started.
func (s *Source) Fetch(ctx context.Context) (events.Batch, error) {
	log := logging.FromContext(ctx).With("source", s.name, "stream", s.stream)
	total, err := s.client.PendingMessages(ctx, s.stream)
	if err != nil {
		return events.Batch{}, err
	}
	var batch events.Batch
	if total == 0 {
		return batch, nil
	}
	sub, err := s.client.JetStream().PullSubscribe(s.subject, "", nats.BindStream(s.stream), nats.DeliverAll(), nats.AckNone())
	if err != nil {
		return events.Batch{}, fmt.Errorf("failed to subscribe to stream %q, %w", s.stream, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Warnw("Failed to remove ephemeral consumer", zap.Error(err))
		}
	}()

	for received := 0; received < total; {
		if err := ctx.Err(); err != nil {
			return events.Batch{}, err
		}
		msgs, err := sub.Fetch(min(s.batchSize, total-received), nats.MaxWait(s.fetchWait))
		if errors.Is(err, nats.ErrTimeout) {
			// Messages removed by retention since StreamInfo was taken.
			log.Infow("Stream drained before the expected count", zap.Int("received", received), zap.Int("expected", total))
			break
		}
		if err != nil {
			return events.Batch{}, fmt.Errorf("failed to fetch from stream %q, %w", s.stream, err)
		}
		for _, msg := range msgs {
			received++
			e, err := events.DecodeJSON(msg.Data)
			if err != nil {
				log.Debugw("Skipping message", zap.String("subject", msg.Subject), zap.Error(err))
				batch.Skipped++
				continue
			}
			batch.Events = append(batch.Events, e)
		}
	}
	return batch, nil
}

func (s *Source) Close() error {
	s.client.Close()
	return nil
}
