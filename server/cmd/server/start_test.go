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

package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/numaproj/parksession/pkg/shared/logging"
	"github.com/numaproj/parksession/pkg/snapshot"
)

func testContext() context.Context {
	return logging.WithLogger(context.Background(), zap.NewNop().Sugar())
}

func TestNewServer(t *testing.T) {
	opts := ServerOptions{
		Insecure:           true,
		Port:               8080,
		CorsAllowedOrigins: "http://localhost:3000,http://example.com",
		ReadOnly:           false,
		Store:              snapshot.NewStore(),
	}

	s := NewServer(opts)

	assert.NotNil(t, s)
	assert.Equal(t, opts, s.options)
}

func TestAllowedOrigins(t *testing.T) {
	assert.Empty(t, allowedOrigins(""))
	assert.Equal(t, []string{"http://localhost:3000", "http://example.com"}, allowedOrigins(" http://localhost:3000/, http://example.com ,,"))
}

func TestServer_Cors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(ServerOptions{
		Insecure:           true,
		CorsAllowedOrigins: "http://localhost:3000/",
		Store:              snapshot.NewStore(),
	})
	server := httptest.NewServer(s.Router(testContext()))
	defer server.Close()
	e := httpexpect.Default(t, server.URL)

	e.GET("/api/v1/sysinfo").WithHeader("Origin", "http://localhost:3000").
		Expect().Status(http.StatusOK).
		Header("Access-Control-Allow-Origin").IsEqual("http://localhost:3000")
	e.GET("/api/v1/sysinfo").WithHeader("Origin", "http://evil.example").
		Expect().Status(http.StatusForbidden)
}

func TestServer_StartAndStop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(ServerOptions{Insecure: true, Port: 0, Store: snapshot.NewStore()})
	ctx, cancel := context.WithCancel(testContext())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
