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


package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gateEvents = `id,plate,gate_label,timestamp,category
1,ABC123,north_in,2025-01-01T08:00:00Z,car
2,ABC123,north_out,2025-01-01T10:00:00Z,car
3,XYZ9,south_in,2025-01-01T09:00:00Z,truck
4,XYZ9,south_in,,truck
`

func writeEvents(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(gateEvents), 0o600))
	return path
}

func Test_Commands(t *testing.T) {
	t.Run("test root", func(t *testing.T) {
		b := bytes.NewBufferString("")
		rootCmd.SetOut(b)
		rootCmd.SetArgs([]string{"help"})
		Execute()
		output, _ := io.ReadAll(b)
		assert.Contains(t, string(output), "Available Commands")
		for _, name := range []string{"serve", "correlate", "export", "migrate", "version"} {
			assert.Contains(t, string(output), name)
		}
	})

	t.Run("Serve", func(t *testing.T) {
		cmd := NewServeCommand()
		assert.True(t, cmd.HasLocalFlags())
		assert.Equal(t, "serve", cmd.Use)
		assert.Equal(t, "string", cmd.Flag("config").Value.Type())
		assert.Equal(t, "bool", cmd.Flag("insecure").Value.Type())
		assert.Equal(t, "int", cmd.Flag("port").Value.Type())
		assert.Equal(t, "bool", cmd.Flag("read-only").Value.Type())
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
		err := cmd.Execute()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load configuration file")
	})

	t.Run("Correlate", func(t *testing.T) {
		cmd := NewCorrelateCommand()
		assert.Equal(t, "correlate", cmd.Use)
		assert.Equal(t, "string", cmd.Flag("input").Value.Type())
		assert.Equal(t, "duration", cmd.Flag("tolerance").Value.Type())
		assert.Equal(t, "string", cmd.Flag("policy").Value.Type())
		assert.Equal(t, "string", cmd.Flag("output").Value.Type())
	})

	t.Run("Migrate", func(t *testing.T) {
		cmd := NewMigrateCommand()
		assert.Equal(t, "migrate", cmd.Use)
		assert.Equal(t, "duration", cmd.Flag("timeout").Value.Type())
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"--database-url="})
		err := cmd.Execute()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "--database-url is required")
	})

	t.Run("Version", func(t *testing.T) {
		cmd := NewVersionCommand()
		b := bytes.NewBufferString("")
		cmd.SetOut(b)
		cmd.SetArgs([]string{"--short"})
		require.NoError(t, cmd.Execute())
		assert.NotEmpty(t, strings.TrimSpace(b.String()))
	})
}

func TestCorrelateCommand(t *testing.T) {
	input := writeEvents(t)

	t.Run("jsonl", func(t *testing.T) {
		cmd := NewCorrelateCommand()
		out, errOut := bytes.NewBufferString(""), bytes.NewBufferString("")
		cmd.SetOut(out)
		cmd.SetErr(errOut)
		cmd.SetArgs([]string{"--input", input, "--output", "jsonl"})
		require.NoError(t, cmd.Execute())
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		assert.Len(t, lines, 2)
		assert.Contains(t, out.String(), `"exit_id":2`)
		assert.Contains(t, out.String(), `"duration_seconds":7200`)
		assert.Contains(t, out.String(), `"exit_id":-1`)
		assert.Contains(t, errOut.String(), "missing_timestamp:1")
	})

	t.Run("csv", func(t *testing.T) {
		cmd := NewCorrelateCommand()
		out := bytes.NewBufferString("")
		cmd.SetOut(out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"-i", input, "-o", "csv"})
		require.NoError(t, cmd.Execute())
		assert.True(t, strings.HasPrefix(out.String(), "insertion_id,license_plate,category,color,"))
		assert.Contains(t, out.String(), "1,ABC123,car,,2025-01-01T08:00:00Z,north_in,2025-01-01T10:00:00Z,north_out,,,2,7200")
	})

	t.Run("table", func(t *testing.T) {
		cmd := NewCorrelateCommand()
		out := bytes.NewBufferString("")
		cmd.SetOut(out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"-i", input, "-o", "table"})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "ENTRY ID")
		assert.Contains(t, out.String(), "2h0m0s")
	})

	t.Run("defaults to jsonl off a terminal", func(t *testing.T) {
		cmd := NewCorrelateCommand()
		out := bytes.NewBufferString("")
		cmd.SetOut(out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"-i", input})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), `"entry_id":1`)
	})

	t.Run("a short tolerance leaves the entry open", func(t *testing.T) {
		cmd := NewCorrelateCommand()
		out := bytes.NewBufferString("")
		cmd.SetOut(out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"-i", input, "-o", "jsonl", "--tolerance", "1h"})
		require.NoError(t, cmd.Execute())
		assert.NotContains(t, out.String(), `"exit_id":2`)
	})

	t.Run("invalid flags", func(t *testing.T) {
		for _, args := range [][]string{
			{},
			{"-i", input, "--policy", "greedy"},
			{"-i", input, "--tolerance", "-1h"},
			{"-i", input, "-o", "xml"},
			{"-i", filepath.Join(t.TempDir(), "missing.csv")},
		} {
			cmd := NewCorrelateCommand()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(args)
			assert.Error(t, cmd.Execute(), args)
		}
	})
}

func TestExportCommand(t *testing.T) {
	input := writeEvents(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	conf := "sources:\n  - name: gates\n    type: file\n    path: " + input + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(conf), 0o600))

	cmd := NewExportCommand()
	assert.Equal(t, "export", cmd.Use)
	assert.Equal(t, "string", cmd.Flag("s3-bucket").Value.Type())
	out := filepath.Join(dir, "sessions.csv")
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", configPath, "--out", out, "--status", "matched"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "1,ABC123,car,"))

	cmd = NewExportCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", configPath, "--format", "xml"})
	assert.Error(t, cmd.Execute())
}
