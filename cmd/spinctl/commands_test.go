package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "SpinPull/pkg/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	for _, k := range []string{"REDIS_URL", "STORE_BACKEND", "KAFKA_BROKERS", "PREDICTOR_TYPE", "ML_SERVICE_URL"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const memoryConfig = `
store:
  backend: memory
predictor:
  seed: 3
`

func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	c := newCLI()
	c.newLogger = func(io.Writer) (*applogger.Logger, error) { return applogger.NewNop(), nil }
	root := newRootCmd(c)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestHealthOnMemoryStore(t *testing.T) {
	path := writeConfig(t, memoryConfig)

	out, err := runCLI(t, path, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "store: memory (ok)")

	out, err = runCLI(t, path, "health", "--json")
	require.NoError(t, err)
	var st struct {
		Backend   string `json:"backend"`
		Reachable bool   `json:"reachable"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Reachable)
}

func TestPushDirectProcessesSpin(t *testing.T) {
	path := writeConfig(t, memoryConfig)

	out, err := runCLI(t, path, "push", "17", "--direct", "--ts", "1750507200", "--json")
	require.NoError(t, err)
	var res struct {
		NumberData struct {
			EntryID string `json:"entry_id"`
			Spin    struct {
				Number int `json:"number"`
			} `json:"spin"`
		} `json:"number_data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 17, res.NumberData.Spin.Number)
	assert.Equal(t, "num_1750507200_17_1", res.NumberData.EntryID)
}

func TestPushDirectKeepsZeroTimestamp(t *testing.T) {
	path := writeConfig(t, memoryConfig)

	out, err := runCLI(t, path, "push", "17", "--direct", "--ts", "0", "--json")
	require.NoError(t, err)
	var res struct {
		NumberData struct {
			EntryID string `json:"entry_id"`
		} `json:"number_data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "num_0_17_1", res.NumberData.EntryID)
}

func TestPushRejectsBadNumbers(t *testing.T) {
	path := writeConfig(t, memoryConfig)

	for _, arg := range []string{"37", "-1", "seven"} {
		_, err := runCLI(t, path, "push", arg, "--direct")
		assert.Error(t, err, arg)
	}
}

func TestPushToBusNeedsRedis(t *testing.T) {
	path := writeConfig(t, memoryConfig)

	_, err := runCLI(t, path, "push", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis store backend")
}

func TestPushEnqueuesOnRedisBus(t *testing.T) {
	mr := miniredis.RunT(t)
	path := writeConfig(t, "store:\n  backend: redis\n  url: redis://"+mr.Addr()+"/0\n")

	out, err := runCLI(t, path, "push", "22", "--ts", "1750507200")
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued 22")

	msgs, err := mr.List("spinpull:queue:messages")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	var msg struct {
		Type    string `json:"type"`
		Payload struct {
			Number    int   `json:"number"`
			Timestamp int64 `json:"timestamp"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(msgs[0]), &msg))
	assert.Equal(t, "spin.ingest", msg.Type)
	assert.Equal(t, 22, msg.Payload.Number)
	assert.EqualValues(t, 1750507200, msg.Payload.Timestamp)
}

func TestUnreachableStoreFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	path := writeConfig(t, "store:\n  backend: redis\n  url: redis://"+addr+"/0\n  dial_timeout: 200ms\n")

	_, err := runCLI(t, path, "health")
	assert.Error(t, err)
}

func TestPendingStatsAndPurge(t *testing.T) {
	path := writeConfig(t, memoryConfig)

	out, err := runCLI(t, path, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "no pending predictions")

	out, err = runCLI(t, path, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "spins: 0")

	_, err = runCLI(t, path, "purge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	_, err = runCLI(t, path, "purge", "--yes")
	assert.NoError(t, err)
}

func TestMissingConfigFails(t *testing.T) {
	_, err := runCLI(t, filepath.Join(t.TempDir(), "nope.yaml"), "health")
	assert.Error(t, err)
}
