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

// Package s3 reads gate events from a CSV or JSON-lines object in an S3 compatible bucket.
package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/numaproj/parksession/pkg/config"
	"github.com/numaproj/parksession/pkg/events"
	s3client "github.com/numaproj/parksession/pkg/shared/clients/s3"
)

// GetObjectAPI is the part of the S3 client the source needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Source struct {
	name     string
	bucket   string
	key      string
	encoding events.Encoding
	client   GetObjectAPI
}

// New creates the source with a client built from the default AWS credential chain.
func New(ctx context.Context, cfg config.SourceConfig) (*Source, error) {
	client, err := s3client.NewClient(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return NewWithClient(cfg.Name, cfg.Bucket, cfg.Key, cfg.Format, client), nil
}

// NewWithClient creates the source on top of an existing client. An empty format is taken
// from the object key extension.
func NewWithClient(name, bucket, key, format string, client GetObjectAPI) *Source {
	enc := events.Encoding(format)
	if format == "" {
		enc = events.EncodingFromName(key)
	}
	return &Source{name: name, bucket: bucket, key: key, encoding: enc, client: client}
}

func (s *Source) Name() string {
	return s.name
}

// Fetch downloads and decodes the object.
func (s *Source) Fetch(ctx context.Context) (events.Batch, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return events.Batch{}, fmt.Errorf("s3 get object s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()
	batch, err := events.Read(out.Body, s.encoding)
	if err != nil {
		return events.Batch{}, fmt.Errorf("failed to read s3://%s/%s, %w", s.bucket, s.key, err)
	}
	return batch, nil
}

func (s *Source) Close() error {
	return nil
}
