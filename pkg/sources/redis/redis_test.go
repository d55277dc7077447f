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

package redis

import (
	"context"
	"fmt"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/parksession/pkg/config"
	"github.com/numaproj/parksession/pkg/events"
)

func TestDecode(t *testing.T) {
	e, err := decode(map[string]interface{}{
		"insertion_id":  "12",
		"license_plate": "ABC123",
		"gate":          "north_in",
		"timestamp":     "2025-01-01T08:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), e.ID)
	assert.Equal(t, "north_in", e.GateLabel)

	e, err = decode(map[string]interface{}{
		PayloadField: `{"id": 3, "plate": "XYZ999", "gate_label": "east_out", "color": "red"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.ID)
	assert.Equal(t, "red", events.StringOrEmpty(e.Color))

	_, err = decode(map[string]interface{}{PayloadField: "{not json"})
	assert.Error(t, err)
	_, err = decode(map[string]interface{}{"plate": "NOID"})
	assert.ErrorIs(t, err, events.ErrMissingID)
}

func TestSource_Fetch(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.SkipNow()
	}
	ctx := context.TODO()
	stream := "parksession-source-test"
	s := New(config.SourceConfig{Name: "r", Type: config.SourceRedis, Addr: addr, Stream: stream, PageSize: 2})
	defer s.Close()
	_ = s.client.Client.Del(ctx, stream).Err()
	defer func() { _ = s.client.Client.Del(ctx, stream).Err() }()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.client.Client.XAdd(ctx, &goredis.XAddArgs{Stream: stream, Values: map[string]interface{}{
			"id": fmt.Sprint(i), "plate": "ABC123", "gate_label": "north_in", "timestamp": "2025-01-01T08:00:00Z",
		}}).Err())
	}
	require.NoError(t, s.client.Client.XAdd(ctx, &goredis.XAddArgs{Stream: stream, Values: map[string]interface{}{"plate": "BROKEN"}}).Err())

	batch, err := s.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Events, 5)
	assert.Equal(t, 1, batch.Skipped)
	assert.Equal(t, int64(5), batch.Events[4].ID)

	empty := New(config.SourceConfig{Name: "e", Type: config.SourceRedis, Addr: addr, Stream: stream + "-missing"})
	defer empty.Close()
	batch, err = empty.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch.Events)
	assert.Zero(t, batch.Skipped)
}
