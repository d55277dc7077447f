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

package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/parksession/pkg/config"
)

const testTopic = "gate-events"

func record(id int, plate, gate string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic: testTopic,
		Value: []byte(fmt.Sprintf(`{"id": %d, "plate": %q, "gate_label": %q, "timestamp": "2025-01-01T08:00:00Z"}`, id, plate, gate)),
	}
}

func newTestSource(consumer *mocks.Consumer, newest map[int32]int64, opts ...Option) *Source {
	return NewWithConsumer("bus", testTopic, func() (sarama.Consumer, error) {
		return consumer, nil
	}, func(topic string, partition int32) (int64, int64, error) {
		return 0, newest[partition], nil
	}, opts...)
}

func TestSource_Fetch(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{testTopic: {0, 1, 2}})
	consumer.ExpectConsumePartition(testTopic, 0, sarama.OffsetOldest).
		YieldMessage(record(1, "ABC123", "north_in")).
		YieldMessage(&sarama.ConsumerMessage{Topic: testTopic, Value: []byte("not json")}).
		YieldMessage(record(3, "ABC123", "south_out"))
	consumer.ExpectConsumePartition(testTopic, 1, sarama.OffsetOldest).
		YieldMessage(record(2, "XYZ999", "east_in"))

	s := newTestSource(consumer, map[int32]int64{0: 3, 1: 1})
	assert.Equal(t, "bus", s.Name())
	batch, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Events, 3)
	assert.Equal(t, 1, batch.Skipped)
	assert.Equal(t, []int64{1, 3, 2}, []int64{batch.Events[0].ID, batch.Events[1].ID, batch.Events[2].ID})
	assert.NoError(t, s.Close())
}

func TestSource_FetchIdlePartition(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{testTopic: {0}})
	consumer.ExpectConsumePartition(testTopic, 0, sarama.OffsetOldest).
		YieldMessage(record(1, "ABC123", "north_in"))

	s := newTestSource(consumer, map[int32]int64{0: 3}, WithIdleTimeout(50*time.Millisecond))
	batch, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch.Events, 1)
}

func TestSource_FetchPartitionError(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{testTopic: {0}})
	consumer.ExpectConsumePartition(testTopic, 0, sarama.OffsetOldest).
		YieldError(sarama.ErrOutOfBrokers)

	_, err := newTestSource(consumer, map[int32]int64{0: 1}).Fetch(context.Background())
	assert.ErrorContains(t, err, "failed to read gate-events/0")
}

func TestSource_FetchCancelled(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{testTopic: {0}})
	consumer.ExpectConsumePartition(testTopic, 0, sarama.OffsetOldest)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestSource(consumer, map[int32]int64{0: 5}, WithIdleTimeout(time.Minute)).Fetch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSource_FetchErrors(t *testing.T) {
	s := NewWithConsumer("bus", testTopic, func() (sarama.Consumer, error) {
		return nil, errors.New("no brokers")
	}, nil)
	_, err := s.Fetch(context.Background())
	assert.ErrorContains(t, err, "no brokers")

	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{testTopic: {0}})
	s = NewWithConsumer("bus", testTopic, func() (sarama.Consumer, error) {
		return consumer, nil
	}, func(string, int32) (int64, int64, error) {
		return 0, 0, errors.New("leader not available")
	})
	_, err = s.Fetch(context.Background())
	assert.ErrorContains(t, err, "leader not available")
}

func TestConfigFromYAML(t *testing.T) {
	cfg, err := ConfigFromYAML("")
	require.NoError(t, err)
	assert.True(t, cfg.Consumer.Return.Errors)
	assert.Equal(t, sarama.OffsetOldest, cfg.Consumer.Offsets.Initial)

	cfg, err = ConfigFromYAML("clientID: parksession\nconsumer:\n  fetch:\n    default: 2048\n")
	require.NoError(t, err)
	assert.Equal(t, "parksession", cfg.ClientID)
	assert.Equal(t, int32(2048), cfg.Consumer.Fetch.Default)

	_, err = ConfigFromYAML("consumer:\n  fetch:\n    default: 0\n")
	assert.ErrorContains(t, err, "failed validating sarama config")

	_, err = ConfigFromYAML("a: [b")
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), config.SourceConfig{
		Name: "bus", Type: config.SourceKafka, Brokers: []string{"localhost:9092"}, Topic: testTopic,
		SaramaConfig: "consumer:\n  fetch:\n    default: 0\n",
	})
	assert.ErrorContains(t, err, "error reading kafka source config")
}
