package logging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_JSONFieldNames(t *testing.T) {
	event := &Event{
		Timestamp: time.Date(2026, 2, 23, 14, 30, 0, 123000000, time.UTC),
		RunID:     "session-9f8e7d6c",
		Host:      "hostA",
		EventType: EventPrimitiveApply,
		Summary:   "Route 10.0.0.0/8 via 192.10.1.2",
	}
	b, err := json.Marshal(event)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))

	assert.Contains(t, m, "ts")
	assert.Contains(t, m, "run_id")
	assert.Contains(t, m, "host")
	assert.Contains(t, m, "event_type")
	assert.Contains(t, m, "summary")
	// Omitempty fields absent
	assert.NotContains(t, m, "tags")
	assert.NotContains(t, m, "data")
}

func TestEvent_OmitemptyPresent(t *testing.T) {
	event := &Event{
		Timestamp: time.Now().UTC(),
		RunID:     "test",
		Host:      "hostA",
		EventType: EventPrimitiveApply,
		Summary:   "test",
		Tags:      []string{"rollback"},
		Data:      json.RawMessage(`{"ok":true}`),
	}
	b, err := json.Marshal(event)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))

	assert.Contains(t, m, "tags")
	assert.Contains(t, m, "data")
}

func TestEvent_TimestampFormat(t *testing.T) {
	ts := time.Date(2026, 2, 23, 14, 30, 0, 123456789, time.UTC)
	event := &Event{Timestamp: ts, RunID: "r", Host: "a", EventType: "t", Summary: "s"}

	b, err := json.Marshal(event)
	require.NoError(t, err)

	// Verify RFC 3339 with sub-second precision
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	tsStr := m["ts"].(string)
	parsed, err := time.Parse(time.RFC3339Nano, tsStr)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}

func TestPrimitiveData_OkAlwaysPresent(t *testing.T) {
	data := &PrimitiveData{
		Kind: "FilterRule",
		Ok:   false,
	}
	b, err := json.Marshal(data)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Contains(t, m, "ok", "ok field must be present even when false")
	assert.Equal(t, false, m["ok"])
}

func TestSupervisorRestartData_AttemptsAlwaysPresent(t *testing.T) {
	data := &SupervisorRestartData{
		Kind:     "ANY_PROXY",
		Attempts: 2,
	}
	b, err := json.Marshal(data)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Contains(t, m, "attempts")
}

func TestEventTypeConstants(t *testing.T) {
	assert.Equal(t, "primitive_apply", EventPrimitiveApply)
	assert.Equal(t, "primitive_revert", EventPrimitiveRevert)
	assert.Equal(t, "transaction_rollback", EventTransactionRollback)
	assert.Equal(t, "compile_pass", EventCompilePass)
}
