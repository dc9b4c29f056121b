package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockview-project/lockview/internal/audit"
	"github.com/lockview-project/lockview/pkg/model"
)

func readLines(t *testing.T, path string) []model.LaunchRecord {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []model.LaunchRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r model.LaunchRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	return records
}

func TestLog_AppendCreatesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", audit.DefaultName)
	log := audit.NewLog(path)

	require.NoError(t, log.Append(model.LaunchRecord{
		Event: model.EventLaunchStarted,
		RunID: "run-1",
		Repo:  "https://example.com/viewer.git",
	}))

	records := readLines(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, model.EventLaunchStarted, records[0].Event)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.False(t, records[0].Timestamp.IsZero())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLog_HashChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), audit.DefaultName)
	log := audit.NewLog(path)

	require.NoError(t, log.Append(model.LaunchRecord{Event: model.EventLaunchStarted, RunID: "r"}))
	require.NoError(t, log.Append(model.LaunchRecord{
		Event:    model.EventWindowExited,
		RunID:    "r",
		ExitCode: 3,
		Details:  map[string]any{"pid": 42},
	}))

	records := readLines(t, path)
	require.Len(t, records, 2)
	assert.Empty(t, records[0].PrevHash)
	assert.Equal(t, records[0].RecordHash, records[1].PrevHash)
	assert.NotEmpty(t, records[1].RecordHash)
	assert.NotEqual(t, records[0].RecordHash, records[1].RecordHash)

	last, err := log.LastHash()
	require.NoError(t, err)
	assert.Equal(t, records[1].RecordHash, last)
}

func TestLog_LastHashMissingFile(t *testing.T) {
	log := audit.NewLog(filepath.Join(t.TempDir(), "none.jsonl"))
	last, err := log.LastHash()
	require.NoError(t, err)
	assert.Empty(t, last)

	records, err := log.Records()
	require.NoError(t, err)
	assert.Empty(t, records)

	n, err := log.Verify()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLog_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), audit.DefaultName)
	log := audit.NewLog(path)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			assert.NoError(t, log.Append(model.LaunchRecord{
				Event:   model.EventLaunchStarted,
				Details: map[string]any{"idx": idx},
			}))
		}(i)
	}
	wg.Wait()

	n, err := log.Verify()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestLog_VerifyDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), audit.DefaultName)
	log := audit.NewLog(path)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, log.Append(model.LaunchRecord{Timestamp: start, Event: model.EventLaunchStarted, RunID: "a"}))
	require.NoError(t, log.Append(model.LaunchRecord{Timestamp: start.Add(time.Minute), Event: model.EventWindowExited, RunID: "a"}))

	n, err := log.Verify()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"exit_code":0`, `"exit_code":9`, 1)
	require.NotEqual(t, string(data), tampered)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0600))

	_, err = log.Verify()
	require.Error(t, err)
	assert.ErrorIs(t, err, audit.ErrChainBroken)
	assert.Contains(t, err.Error(), "line 1")
}

func TestLog_VerifyDetectsDeletedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), audit.DefaultName)
	log := audit.NewLog(path)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, log.Append(model.LaunchRecord{Event: model.EventLaunchStarted, RunID: id}))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.SplitAfter(string(data), "\n")
	require.NoError(t, os.WriteFile(path, []byte(lines[0]+lines[2]), 0600))

	_, err = log.Verify()
	assert.ErrorIs(t, err, audit.ErrChainBroken)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLog_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), audit.DefaultName)
	log := audit.NewLog(path)
	require.NoError(t, log.Append(model.LaunchRecord{Event: model.EventLaunchStarted}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{torn\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Appends keep chaining from the last good record.
	require.NoError(t, log.Append(model.LaunchRecord{Event: model.EventWindowExited}))

	_, err = log.Records()
	assert.Error(t, err)
	_, err = log.Verify()
	assert.ErrorIs(t, err, audit.ErrChainBroken)
}
