package logging

import (
	"encoding/json"
	"time"
)

// Event is the canonical structured event for the mesh compiler's logging
// standard. Required fields: Timestamp, RunID, Host, EventType, Summary.
// Optional fields use omitempty tags.
type Event struct {
	Timestamp time.Time       `json:"ts"`
	RunID     string          `json:"run_id"`
	Host      string          `json:"host"`
	EventType string          `json:"event_type"`
	Summary   string          `json:"summary"`
	Tags      []string        `json:"tags,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event type constants.
const (
	EventPrimitiveApply      = "primitive_apply"
	EventPrimitiveRevert     = "primitive_revert"
	EventTransactionRollback = "transaction_rollback"
	EventCompilePass         = "compile_pass"
	EventSupervisorRestart   = "supervisor_restart"
)

// PrimitiveData is the data payload for primitive_apply / primitive_revert events.
type PrimitiveData struct {
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
	Ok      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Elapsed int64  `json:"elapsed_ms,omitempty"`
}

// TransactionRollbackData is the data payload for transaction_rollback events.
type TransactionRollbackData struct {
	FailedKind  string `json:"failed_kind"`
	FailedIndex int    `json:"failed_index"`
	Reverted    int    `json:"reverted"`
	Error       string `json:"error,omitempty"`
}

// CompilePassData is the data payload for compile_pass events.
type CompilePassData struct {
	Pass         int `json:"pass"`
	HostsTouched int `json:"hosts_touched"`
}

// SupervisorRestartData is the data payload for supervisor_restart events.
type SupervisorRestartData struct {
	Kind     string `json:"kind"`
	PID      int    `json:"pid,omitempty"`
	Attempts int    `json:"attempts"`
}
