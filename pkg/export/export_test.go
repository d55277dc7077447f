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
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/parksession/pkg/events"
	"github.com/numaproj/parksession/pkg/session"
)

func testSessions() []session.Session {
	entry := events.ParsedEvent{
		ID:          1,
		Plate:       "ABC123",
		GateLabel:   "north_in",
		Time:        time.Date(2025, 1, 24, 8, 0, 0, 0, time.UTC),
		Direction:   events.DirectionEntry,
		Category:    events.Optional("car"),
		Color:       events.Optional("red"),
		Zone:        events.Optional("A"),
		Description: events.Optional("visitor, level 2"),
	}
	exit := events.ParsedEvent{
		ID:        2,
		Plate:     "ABC123",
		GateLabel: "south_out",
		Time:      time.Date(2025, 1, 24, 9, 30, 0, 0, time.UTC),
		Direction: events.DirectionExit,
	}
	orphan := events.ParsedEvent{
		ID:        3,
		Plate:     "XYZ789",
		GateLabel: "east_in",
		Time:      time.Date(2025, 1, 24, 10, 0, 0, 0, time.UTC),
		Direction: events.DirectionEntry,
	}
	return []session.Session{session.Assemble(entry, &exit), session.Assemble(orphan, nil)}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	f, err = ParseFormat("JSONL")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)
	_, err = ParseFormat("xlsx")
	assert.Error(t, err)

	assert.Equal(t, "text/csv", FormatCSV.ContentType())
	assert.Equal(t, "application/x-ndjson", FormatJSONL.ContentType())
	assert.Equal(t, "sessions-20250124T080000Z.jsonl", FormatJSONL.FileName(time.Date(2025, 1, 24, 8, 0, 0, 0, time.UTC)))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, testSessions()))
	want := "insertion_id,license_plate,category,color,entry_timestamp,entry_gate,exit_timestamp,exit_gate,zone,description,insertion_id_exit,duration\n" +
		"1,ABC123,car,red,2025-01-24T08:00:00Z,north_in,2025-01-24T09:30:00Z,south_out,A,\"visitor, level 2\",2,5400\n" +
		"3,XYZ789,,,2025-01-24T10:00:00Z,east_in,,,,,-1,-1\n"
	assert.Equal(t, want, buf.String())
}

func TestRecord_SubSecond(t *testing.T) {
	entry := events.ParsedEvent{ID: 7, Plate: "ABC123", GateLabel: "north_in", Time: time.Date(2025, 1, 24, 8, 0, 0, 250_000_000, time.UTC)}
	exit := events.ParsedEvent{ID: 8, Plate: "ABC123", GateLabel: "north_out", Time: time.Date(2025, 1, 24, 8, 0, 1, 0, time.UTC)}
	record := Record(session.Assemble(entry, &exit))
	assert.Equal(t, "2025-01-24T08:00:00.25Z", record[4])
	assert.Equal(t, "2025-01-24T08:00:01Z", record[6])
	assert.Equal(t, "0.75", record[11])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(Header, ",")+"\n", buf.String())
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSONL, testSessions()))

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "ABC123", lines[0]["plate"])
	assert.Equal(t, float64(5400), lines[0]["duration_seconds"])
	assert.Equal(t, "2025-01-24T09:30:00Z", lines[0]["exit_time"])
	assert.Nil(t, lines[1]["exit_time"])
	assert.Equal(t, float64(-1), lines[1]["exit_id"])
	assert.Nil(t, lines[1]["category"])
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(io.Discard, Format("xlsx"), testSessions()))
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Destination_Upload(t *testing.T) {
	client := &fakeS3{}
	d := NewS3DestinationWithClient(client, "reports")

	key, err := d.Upload(context.Background(), "daily/sessions.csv", FormatCSV, testSessions())
	require.NoError(t, err)
	assert.Equal(t, "daily/sessions.csv", key)
	assert.Equal(t, "reports", aws.ToString(client.input.Bucket))
	assert.Equal(t, "daily/sessions.csv", aws.ToString(client.input.Key))
	assert.Equal(t, "text/csv", aws.ToString(client.input.ContentType))
	assert.True(t, strings.HasPrefix(string(client.body), "insertion_id,license_plate"))
}

func TestS3Destination_GeneratedKey(t *testing.T) {
	client := &fakeS3{}
	d := NewS3DestinationWithClient(client, "reports")

	key, err := d.Upload(context.Background(), "", FormatJSONL, testSessions())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, KeyPrefix))
	assert.True(t, strings.HasSuffix(key, ".jsonl"))
	assert.Len(t, key, len(KeyPrefix)+KeyLength+len(".jsonl"))
	assert.Equal(t, key, aws.ToString(client.input.Key))

	other, err := GenerateKey(FormatJSONL)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestS3Destination_Error(t *testing.T) {
	d := NewS3DestinationWithClient(&fakeS3{err: errors.New("access denied")}, "reports")
	_, err := d.Upload(context.Background(), "k", FormatCSV, testSessions())
	assert.ErrorContains(t, err, "access denied")
}
