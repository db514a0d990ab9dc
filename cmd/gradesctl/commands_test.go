package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/grades/internal/admin"
	"github.com/JonMunkholm/grades/internal/config"
	"github.com/JonMunkholm/grades/internal/core"
	"github.com/JonMunkholm/grades/internal/database/sqlite"
)

const twos = "01.09.2023;101Б;Иванов Иван;2\n" +
	"02.09.2023;101Б;Иванов Иван;2\n" +
	"03.09.2023;101Б;Иванов Иван;2\n" +
	"04.09.2023;101Б;Иванов Иван;2\n" +
	"05.09.2023;101Б;Петров Пётр;2\n" +
	"06.09.2023;101Б;Петров Пётр;2\n"

// testOpener shares one in-memory store across every command run.
func testOpener(t *testing.T) opener {
	t.Helper()
	store, err := sqlite.Open(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{Report: config.ReportConfig{MoreThanDefault: 3, LessThanDefault: 5}}
	a := &app{svc: core.NewService(store), cfg: cfg, store: store, close: func() {}}
	return func(context.Context) (*app, error) {
		return a, nil
	}
}

func execute(open opener, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	root := newRootCmd(open)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestIngestAndReport(t *testing.T) {
	open := testOpener(t)

	out, _, err := execute(open, "ingest", writeFile(t, "grades.csv", twos))
	require.NoError(t, err)
	var resp core.IngestResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 6, resp.RecordsLoaded)
	assert.Equal(t, 2, resp.Students)

	out, _, err = execute(open, "report", "more-than")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"full_name":"Иванов Иван","count_twos":4}]`, out)

	out, _, err = execute(open, "report", "less-than", "--n", "3")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"full_name":"Петров Пётр","count_twos":2}]`, out)

	out, _, err = execute(open, "report", "less-than", "-f", "table")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "FULL NAME")
	assert.Contains(t, lines[1], "Иванов Иван")
	assert.Contains(t, lines[2], "Петров Пётр")
}

func TestIngest_MultipleFiles(t *testing.T) {
	open := testOpener(t)
	a := writeFile(t, "a.csv", twos)
	b := writeFile(t, "b.CSV", "07.09.2023;102Б;Сидоров Сидор;2\n")

	out, _, err := execute(open, "ingest", a, b)
	require.NoError(t, err)

	dec := json.NewDecoder(strings.NewReader(out))
	var first, second core.IngestResponse
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, 6, first.RecordsLoaded)
	assert.Equal(t, 1, second.RecordsLoaded)
}

func TestIngest_RowErrorsAndStrict(t *testing.T) {
	open := testOpener(t)
	path := writeFile(t, "grades.csv", "01.09.2023;101Б;Иванов Иван;5\n01.09.2023;101Б;Иванов Иван;9\n")

	out, _, err := execute(open, "ingest", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"errors"`)

	_, stderr, err := execute(open, "ingest", "--strict", path)
	assert.True(t, errors.Is(err, errRowsRejected))
	assert.Contains(t, stderr, "some rows were rejected")
}

func TestIngest_Rejections(t *testing.T) {
	open := testOpener(t)

	_, stderr, err := execute(open, "ingest", writeFile(t, "grades.txt", twos))
	assert.ErrorIs(t, err, core.ErrNotCSV)
	assert.Contains(t, stderr, "FILE006")

	_, _, err = execute(open, "ingest", filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = execute(open, "ingest")
	assert.Error(t, err)
}

func TestReport_Errors(t *testing.T) {
	open := testOpener(t)

	_, stderr, err := execute(open, "report", "more-than", "--n=-1")
	assert.ErrorIs(t, err, core.ErrInvalidThreshold)
	assert.Contains(t, stderr, "REP001")

	_, _, err = execute(open, "report", "more-than", "--format", "xml")
	assert.Error(t, err)

	failing := func(context.Context) (*app, error) {
		return nil, errors.New("config validation: STORAGE_DRIVER must be postgres or sqlite")
	}
	_, stderr, err = execute(failing, "report", "less-than")
	assert.Error(t, err)
	assert.Contains(t, stderr, "STORAGE_DRIVER")
}

func TestReset(t *testing.T) {
	open := testOpener(t)
	_, _, err := execute(open, "ingest", writeFile(t, "grades.csv", twos))
	require.NoError(t, err)

	_, stderr, err := execute(open, "reset")
	assert.ErrorIs(t, err, admin.ErrNotConfirmed)
	assert.Contains(t, stderr, "confirmation required")

	out, _, err := execute(open, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	out, _, err = execute(open, "report", "less-than")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}
