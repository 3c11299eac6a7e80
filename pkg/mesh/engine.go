package mesh

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/wgmesh/meshctl/internal/errx"
	"github.com/wgmesh/meshctl/pkg/logging"
)

// DefaultStateDir is the default location, relative to the user's home
// directory, for runtime state: the JSONL event log here, and the persisted
// host keys the CLI keeps under its keys/ subdirectory.
const DefaultStateDir = ".meshctl"

// Engine is the top-level façade the CLI drives: it owns the Network plus
// the logging.Emitter every primitive/transaction/compile-pass event flows
// through.
type Engine struct {
	Network *Network
	emitter *logging.Emitter
	runID   string
}

// NewEngine opens (creating if needed) a JSONL event log at
// <stateDir>/events.jsonl and returns an Engine wired to write every
// EventPrimitiveApply/Revert/TransactionRollback/CompilePass/
// SupervisorRestart event to it.
func NewEngine(stateDir string, mockNet bool) (*Engine, error) {
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errx.Wrap(ErrConfig, err)
		}
		stateDir = filepath.Join(home, DefaultStateDir)
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, errx.Wrap(ErrConfig, err)
	}

	writer, err := logging.NewJSONLWriter(filepath.Join(stateDir, "events.jsonl"))
	if err != nil {
		return nil, errx.Wrap(ErrConfig, err)
	}

	runID := uuid.New().String()
	emitter := logging.NewEmitter(logging.EmitterConfig{RunID: runID}, writer)

	return &Engine{
		Network: NewNetwork(mockNet),
		emitter: emitter,
		runID:   runID,
	}, nil
}

// RunID reports the identifier stamped onto every event this Engine emits.
func (e *Engine) RunID() string { return e.runID }

// Close closes the underlying event sinks.
func (e *Engine) Close() error {
	if e.emitter == nil {
		return nil
	}
	return e.emitter.Close()
}

// RestartNotifier returns a logging-backed RestartNotifier bound to host,
// suitable for passing to AddHost/AddDNS. The notifier given to AddHost is
// also the one InstallPolicyRoute hands to the egress proxy it installs.
func (e *Engine) RestartNotifier(host string) RestartNotifier {
	return func(kind SupervisedKind, pid int, attempts int) {
		_ = e.emitter.Emit(logging.EventSupervisorRestart, host,
			fmt.Sprintf("restarted %s (attempt %d)", kind, attempts), nil,
			&logging.SupervisorRestartData{Kind: string(kind), PID: pid, Attempts: attempts})
	}
}

// Up does what Network.Up does with instrumentation: it compiles the
// network on first use (emitting one EventCompilePass), then applies the
// host's transaction, emitting an EventPrimitiveApply for each primitive
// attempted, an EventPrimitiveRevert for each primitive rolled back, and an
// EventTransactionRollback if the apply aborts partway through.
func (e *Engine) Up(ctx context.Context, host string) error {
	if !e.Network.compiled {
		if err := e.Network.Compile(); err != nil {
			return err
		}
		_ = e.emitter.Emit(logging.EventCompilePass, "", "compilation complete", nil,
			&logging.CompilePassData{Pass: 2, HostsTouched: len(e.Network.order)})
	}

	h, err := e.Network.Host(host)
	if err != nil {
		return err
	}
	e.instrument(h.Transaction(), host)

	if err := h.Transaction().Apply(ctx); err != nil {
		_ = e.emitter.Emit(logging.EventTransactionRollback, host, err.Error(), nil,
			&logging.TransactionRollbackData{Error: err.Error()})
		return err
	}
	return nil
}

// Down wraps Network.Down with the same per-primitive instrumentation.
func (e *Engine) Down(ctx context.Context, host string) error {
	h, err := e.Network.Host(host)
	if err != nil {
		return err
	}
	e.instrument(h.Transaction(), host)
	return e.Network.Down(ctx, host)
}

// instrument wraps every primitive currently in t with a logging shim, once.
// Primitives that are already wrapped are left as they are, so calling it
// again before each Apply/Revert never double-wraps.
func (e *Engine) instrument(t *Transaction, host string) {
	for i, p := range t.prims {
		if _, already := p.(*loggingPrimitive); already {
			continue
		}
		t.prims[i] = &loggingPrimitive{inner: p, emitter: e.emitter, host: host}
	}
}

// loggingPrimitive decorates a Primitive with EventPrimitiveApply/Revert
// emission, keeping pkg/logging entirely out of the prim_*.go files
// themselves.
type loggingPrimitive struct {
	inner   Primitive
	emitter *logging.Emitter
	host    string
}

func (p *loggingPrimitive) Apply(ctx context.Context) error {
	err := p.inner.Apply(ctx)
	p.emit(logging.EventPrimitiveApply, err)
	return err
}

func (p *loggingPrimitive) Revert(ctx context.Context) error {
	err := p.inner.Revert(ctx)
	p.emit(logging.EventPrimitiveRevert, err)
	return err
}

func (p *loggingPrimitive) String() string { return p.inner.String() }

func (p *loggingPrimitive) emit(eventType string, err error) {
	data := &logging.PrimitiveData{Kind: fmt.Sprintf("%T", p.inner), Detail: p.inner.String(), Ok: err == nil}
	if err != nil {
		data.Error = err.Error()
	}
	_ = p.emitter.Emit(eventType, p.host, p.inner.String(), nil, data)
}
