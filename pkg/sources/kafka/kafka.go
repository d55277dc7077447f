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

// Package kafka replays a Kafka topic. Each fetch reads every partition from the oldest
// retained offset up to the newest offset observed when the fetch started.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/numaproj/parksession/pkg/config"
	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/shared/logging"
)

// DefaultIdleTimeout stops reading a partition that delivers nothing for this long, which
// happens when trailing offsets hold transaction markers rather than records.
const DefaultIdleTimeout = 5 * time.Second

// OffsetsFunc returns the oldest retained offset and the next offset to be written.
type OffsetsFunc func(topic string, partition int32) (oldest, newest int64, err error)

type Source struct {
	name        string
	topic       string
	idleTimeout time.Duration
	client      sarama.Client
	newConsumer func() (sarama.Consumer, error)
	offsets     OffsetsFunc
}

type Option func(*Source)

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// New connects to the brokers of cfg.
func New(ctx context.Context, cfg config.SourceConfig, opts ...Option) (*Source, error) {
	saramaConfig, err := ConfigFromYAML(cfg.SaramaConfig)
	if err != nil {
		return nil, fmt.Errorf("error reading kafka source config, %w", err)
	}
	sarama.Logger = zap.NewStdLog(logging.FromContext(ctx).Desugar())
	client, err := sarama.NewClient(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client, %w", err)
	}
	s := NewWithConsumer(cfg.Name, cfg.Topic, func() (sarama.Consumer, error) {
		return sarama.NewConsumerFromClient(client)
	}, func(topic string, partition int32) (int64, int64, error) {
		oldest, err := client.GetOffset(topic, partition, sarama.OffsetOldest)
		if err != nil {
			return 0, 0, err
		}
		newest, err := client.GetOffset(topic, partition, sarama.OffsetNewest)
		return oldest, newest, err
	}, opts...)
	s.client = client
	return s, nil
}

// NewWithConsumer builds a source around a consumer factory. A new consumer is created for
// every fetch and closed when it ends.
func NewWithConsumer(name, topic string, newConsumer func() (sarama.Consumer, error), offsets OffsetsFunc, opts ...Option) *Source {
	s := &Source{
		name:        name,
		topic:       topic,
		idleTimeout: DefaultIdleTimeout,
		newConsumer: newConsumer,
		offsets:     offsets,
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

// Fetch reads all partitions of the topic in partition order.
func (s *Source) Fetch(ctx context.Context) (events.Batch, error) {
	log := logging.FromContext(ctx).With("source", s.name, "topic", s.topic)
	consumer, err := s.newConsumer()
	if err != nil {
		return events.Batch{}, fmt.Errorf("failed to create kafka consumer, %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Warnw("Failed to close kafka consumer", zap.Error(err))
		}
	}()
	partitions, err := consumer.Partitions(s.topic)
	if err != nil {
		return events.Batch{}, fmt.Errorf("failed to list partitions of %q, %w", s.topic, err)
	}
	var batch events.Batch
	for _, partition := range partitions {
		oldest, newest, err := s.offsets(s.topic, partition)
		if err != nil {
			return events.Batch{}, fmt.Errorf("failed to get offsets of %s/%d, %w", s.topic, partition, err)
		}
		if newest <= oldest {
			continue
		}
		if err := s.readPartition(ctx, consumer, partition, newest, &batch, log); err != nil {
			return events.Batch{}, err
		}
	}
	return batch, nil
}

func (s *Source) readPartition(ctx context.Context, consumer sarama.Consumer, partition int32, newest int64, batch *events.Batch, log *zap.SugaredLogger) error {
	pc, err := consumer.ConsumePartition(s.topic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("failed to consume %s/%d, %w", s.topic, partition, err)
	}
	defer pc.AsyncClose()
	idle := time.NewTimer(s.idleTimeout)
	defer idle.Stop()
	errs := pc.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			log.Warnw("Partition idle before reaching its newest offset", zap.Int32("partition", partition), zap.Int64("newest", newest))
			return nil
		case cerr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return fmt.Errorf("failed to read %s/%d, %w", s.topic, partition, cerr)
		case msg, ok := <-pc.Messages():
			if !ok {
				return nil
			}
			e, err := events.DecodeJSON(msg.Value)
			if err != nil {
				log.Debugw("Skipping record", zap.Int32("partition", partition), zap.Int64("offset", msg.Offset), zap.Error(err))
				batch.Skipped++
			} else {
				batch.Events = append(batch.Events, e)
			}
			if msg.Offset >= newest-1 {
				return nil
			}
			idle.Reset(s.idleTimeout)
		}
	}
}

func (s *Source) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
