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

package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/numaproj/parksession/pkg/shared/logging"
)

// Client wraps a NATS connection and its JetStream context.
type Client struct {
	nc    *nats.Conn
	jsCtx nats.JetStreamContext
	log   *zap.SugaredLogger
}

// NewNATSClient connects to url. Extra options are applied after the defaults.
func NewNATSClient(ctx context.Context, url string, natsOptions ...nats.Option) (*Client, error) {
	log := logging.FromContext(ctx)
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.PingInterval(3 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Errorw("NATS subscription error", zap.Error(err))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Errorw("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infow("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.FlusherTimeout(10 * time.Second),
		nats.MaxPingsOutstanding(2),
	}
	opts = append(opts, natsOptions...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats url=%s: %w", url, err)
	}
	jsCtx, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create to nats jetstream context: %w", err)
	}
	return &Client{nc: nc, jsCtx: jsCtx, log: log}, nil
}

// PendingMessages returns how many messages stream holds right now.
func (c *Client) PendingMessages(ctx context.Context, stream string) (int, error) {
	info, err := c.jsCtx.StreamInfo(stream, nats.Context(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to get stream info of %q, %w", stream, err)
	}
	return int(info.State.Msgs), nil
}

// JetStream returns the JetStream context of the connection.
func (c *Client) JetStream() nats.JetStreamContext {
	return c.jsCtx
}

func (c *Client) Close() {
	c.nc.Close()
}
