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
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/numaproj/parksession"
	"github.com/numaproj/parksession/pkg/query"
	"github.com/numaproj/parksession/pkg/shared/logging"
	sharedtls "github.com/numaproj/parksession/pkg/shared/tls"
	"github.com/numaproj/parksession/pkg/snapshot"
	v1 "github.com/numaproj/parksession/server/apis/v1"
	"github.com/numaproj/parksession/server/routes"
)

const shutdownTimeout = 10 * time.Second

type ServerOptions struct {
	Insecure           bool
	Port               int
	CorsAllowedOrigins string
	ReadOnly           bool
	Store              *snapshot.Store
	Reloader           v1.Reloader
	Query              *query.Engine
}

type server struct {
	options ServerOptions
}

func NewServer(opts ServerOptions) *server {
	return &server{
		options: opts,
	}
}

// allowedOrigins splits the comma separated origins, dropping trailing slashes.
func allowedOrigins(csv string) []string {
	origins := make([]string, 0)
	if csv == "" {
		return origins
	}
	for _, o := range strings.Split(csv, ",") {
		s := strings.TrimSpace(o)
		s = strings.TrimRight(s, "/")
		if len(s) > 0 {
			origins = append(origins, s)
		}
	}
	return origins
}

// Router builds the gin engine with every route mounted.
func (s *server) Router(ctx context.Context) *gin.Engine {
	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/livez"}}))
	router.Use(gin.Recovery())
	if origins := allowedOrigins(s.options.CorsAllowedOrigins); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "HEAD"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
			ExposeHeaders:    []string{"Content-Disposition"},
			AllowCredentials: true,
		}))
	}
	router.RedirectTrailingSlash = true
	routes.Routes(ctx, router, routes.SystemInfo{
		Store:      s.options.Store,
		Reloader:   s.options.Reloader,
		Query:      s.options.Query,
		IsReadOnly: s.options.ReadOnly,
	})
	return router
}

// Start serves the API until ctx is done, then shuts down gracefully.
func (s *server) Start(ctx context.Context) error {
	log := logging.FromContext(ctx)
	server := http.Server{
		Addr:              fmt.Sprintf(":%d", s.options.Port),
		Handler:           s.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	if s.options.Insecure {
		log.Infow("Starting server (TLS disabled) on "+server.Addr, "version", parksession.GetVersion())
		go func() { errCh <- server.ListenAndServe() }()
	} else {
		cert, err := sharedtls.GenerateX509KeyPair()
		if err != nil {
			return err
		}
		server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{*cert}, MinVersion: tls.VersionTLS12}
		log.Infow("Starting server on "+server.Addr, "version", parksession.GetVersion())
		go func() { errCh <- server.ListenAndServeTLS("", "") }()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server, %w", err)
	}
	log.Info("Server stopped")
	return nil
}
