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

	"github.com/redis/go-redis/v9"
)

// StreamStart is the smallest possible stream id.
const StreamStart = "-"

// RedisClient datatype to hold redis client attributes.
type RedisClient struct {
	Client redis.UniversalClient
}

// NewRedisClient returns a new Redis Client.
func NewRedisClient(options *redis.UniversalOptions) *RedisClient {
	client := new(RedisClient)
	client.Client = redis.NewUniversalClient(options)
	return client
}

// StreamRange returns up to count entries of stream with ids greater than after.
// Pass StreamStart to read from the beginning.
func (cl *RedisClient) StreamRange(ctx context.Context, stream, after string, count int64) ([]redis.XMessage, error) {
	start := after
	if after != StreamStart {
		start = "(" + after
	}
	msgs, err := cl.Client.XRangeN(ctx, stream, start, "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream %q after %q, %w", stream, after, err)
	}
	return msgs, nil
}

// StreamLength returns the number of entries in stream.
func (cl *RedisClient) StreamLength(ctx context.Context, stream string) (int64, error) {
	return cl.Client.XLen(ctx, stream).Result()
}

func (cl *RedisClient) Close() error {
	return cl.Client.Close()
}
