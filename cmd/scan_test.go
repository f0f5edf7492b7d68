package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/ingest"
	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/store"
)

// setTestConfig points the package config at a temp sqlite database.
func setTestConfig(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cmd.db")
	prev := cfg
	cfg = &config.Config{
		ServiceNow: config.ServiceNowConfig{PageSize: 100, RatePerSec: 10},
		Store:      config.StoreConfig{Driver: "sqlite", DatabaseURL: dbPath},
		Scan:       config.ScanConfig{Concurrency: 2, UserAuditLookbackDays: 90},
	}
	t.Cleanup(func() { cfg = prev })
	return dbPath
}

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	raw := &ingest.RawSnapshot{
		CIs: []ingest.Record{
			{
				"sys_id":                map[string]any{"value": "c1", "display_value": "c1"},
				"name":                  map[string]any{"value": "db01", "display_value": "db01"},
				"assigned_to":           map[string]any{"value": "u1", "display_value": "Jane Doe"},
				"assigned_to.user_name": map[string]any{"value": "jdoe", "display_value": "jdoe"},
			},
			{"sys_id": "c2", "name": "web01"},
		},
		Audit: []ingest.Record{
			{"sys_created_on": "2026-05-30 10:00:00", "documentkey": "c1", "user": "bob", "fieldname": "comments"},
		},
		Users: []ingest.Record{
			{"sys_id": "u1", "user_name": "jdoe", "name": "Jane Doe", "active": "false"},
			{"sys_id": "u2", "user_name": "bob", "name": "Bob Jones", "active": "true"},
		},
	}
	require.NoError(t, ingest.WriteSnapshot(path, raw))
	return path
}

func TestRunScan_SnapshotJSON(t *testing.T) {
	dbPath := setTestConfig(t)
	input := writeFixture(t)

	var out bytes.Buffer
	err := runScan(context.Background(), scanOptions{input: input, save: true, format: "json"}, &out)
	require.NoError(t, err)

	var res model.ScanResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res), out.String())
	assert.Equal(t, 2, res.Summary.TotalCIsAnalyzed)
	require.NotEmpty(t, res.StaleCIs)
	assert.Equal(t, "c1", res.StaleCIs[0].CIID)

	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	run, err := st.LatestScanRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snapshot", run.Source)
}

func TestRunScan_OutputFile(t *testing.T) {
	setTestConfig(t)
	input := writeFixture(t)
	output := filepath.Join(t.TempDir(), "report.csv")

	var stdout bytes.Buffer
	err := runScan(context.Background(), scanOptions{input: input, format: "csv", output: output}, &stdout)
	require.NoError(t, err)
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "c1")
}

func TestRunScan_XLSXNeedsOutput(t *testing.T) {
	setTestConfig(t)
	err := runScan(context.Background(), scanOptions{format: "xlsx"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output")
}

func TestRunScan_UnknownFormat(t *testing.T) {
	setTestConfig(t)
	err := runScan(context.Background(), scanOptions{format: "pdf"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunScan_LiveNeedsCredentials(t *testing.T) {
	setTestConfig(t)
	err := runScan(context.Background(), scanOptions{format: "table"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "servicenow.instance_url is required")
}

func TestRunScan_MissingInput(t *testing.T) {
	setTestConfig(t)
	err := runScan(context.Background(), scanOptions{input: filepath.Join(t.TempDir(), "nope.json")}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunHistory_Empty(t *testing.T) {
	setTestConfig(t)
	prev := historyFormat
	historyFormat = "table"
	t.Cleanup(func() { historyFormat = prev })

	var out bytes.Buffer
	require.NoError(t, runHistory(context.Background(), &out))
	assert.Equal(t, "No assignments recorded.\n", out.String())
}
