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

package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/numaproj/parksession/pkg/session"
	s3client "github.com/numaproj/parksession/pkg/shared/clients/s3"
)

const (
	// KeyPrefix is prepended to generated object keys.
	KeyPrefix = "exports/sessions-"
	// Alphabet defines the character set of the random part of generated keys.
	Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// KeyLength is the number of random characters in generated keys.
	KeyLength = 12
)

// PutObjectAPI is the part of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination uploads exports to a bucket.
type S3Destination struct {
	client PutObjectAPI
	bucket string
}

// NewS3Destination creates a destination with a client built from the default AWS
// credential chain.
func NewS3Destination(ctx context.Context, bucket, region, endpoint string) (*S3Destination, error) {
	client, err := s3client.NewClient(ctx, region, endpoint)
	if err != nil {
		return nil, err
	}
	return NewS3DestinationWithClient(client, bucket), nil
}

func NewS3DestinationWithClient(client PutObjectAPI, bucket string) *S3Destination {
	return &S3Destination{client: client, bucket: bucket}
}

// GenerateKey returns a new random object key for format f.
func GenerateKey(f Format) (string, error) {
	id, err := nanoid.Generate(Alphabet, KeyLength)
	if err != nil {
		return "", fmt.Errorf("generate object key: %w", err)
	}
	return KeyPrefix + id + f.Extension(), nil
}

// Upload renders sessions and writes them as key. An empty key is generated. It returns the
// key written.
func (d *S3Destination) Upload(ctx context.Context, key string, f Format, sessions []session.Session) (string, error) {
	if key == "" {
		var err error
		if key, err = GenerateKey(f); err != nil {
			return "", err
		}
	}
	var buf bytes.Buffer
	if err := Write(&buf, f, sessions); err != nil {
		return "", err
	}
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(f.ContentType()),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return key, nil
}
