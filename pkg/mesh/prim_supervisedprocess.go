package mesh

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wgmesh/meshctl/internal/errx"
)

// SupervisedKind distinguishes the two external helpers the core knows
// about. The core does not implement either binary, only the supervision
// primitive around it.
type SupervisedKind string

const (
	// KindAnyProxy is the transparent TCP proxy; must listen on port 3140.
	KindAnyProxy SupervisedKind = "ANY_PROXY"
	// KindRecursiveDNS is the recursive DNS helper.
	KindRecursiveDNS SupervisedKind = "RECURSIVE_DNS"
)

// supervisorPollInterval is how often the watcher checks child liveness.
const supervisorPollInterval = time.Second

// RestartNotifier is called whenever the watcher respawns a dead child.
// Used to emit EventSupervisorRestart without this package depending on
// pkg/logging directly.
type RestartNotifier func(kind SupervisedKind, pid int, attempts int)

// supervisedProcessPrimitive starts an external long-running helper and
// holds it up: a background watcher restarts it if it exits while the stop
// flag is false. Revert sets the flag and terminates the process, bounded
// by one poll period.
type supervisedProcessPrimitive struct {
	kind SupervisedKind
	exe  string
	args []string
	ns   *Namespace

	// stopSystemdResolved is true when this helper is RECURSIVE_DNS and the
	// host OS resolver must be stopped while the helper holds port 53 —
	// skipped in mock-net mode, matching original_source/mesh.py's
	// `stop_resolved=(not mock_net)`.
	stopSystemdResolved bool
	onRestart           RestartNotifier

	mu                    sync.Mutex
	cmd                   *exec.Cmd
	stop                  atomic.Bool
	done                  chan struct{}
	resolvedStoppedBySelf bool
	attempts              int
}

func newSupervisedProcessPrimitive(kind SupervisedKind, exe string, args []string, ns *Namespace, stopSystemdResolved bool, onRestart RestartNotifier) *supervisedProcessPrimitive {
	return &supervisedProcessPrimitive{
		kind:                kind,
		exe:                 exe,
		args:                args,
		ns:                  ns,
		stopSystemdResolved: stopSystemdResolved,
		onRestart:           onRestart,
	}
}

func (p *supervisedProcessPrimitive) Apply(ctx context.Context) error {
	if p.kind == KindRecursiveDNS && p.stopSystemdResolved {
		p.maybeStopSystemdResolved()
	}

	if err := p.spawn(); err != nil {
		return errx.Wrap(ErrPrimitive, errx.Wrap(ErrProcessStart, err))
	}

	p.done = make(chan struct{})
	go p.watch()
	return nil
}

func (p *supervisedProcessPrimitive) Revert(ctx context.Context) error {
	p.stop.Store(true)

	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}

	if p.done != nil {
		select {
		case <-p.done:
		case <-time.After(supervisorPollInterval * 2):
		}
	}

	if p.kind == KindRecursiveDNS && p.resolvedStoppedBySelf {
		_ = exec.Command("systemctl", "start", "systemd-resolved").Run()
	}
	return nil
}

func (p *supervisedProcessPrimitive) String() string {
	return fmt.Sprintf("SupervisedProcess(%s)", p.kind)
}

func (p *supervisedProcessPrimitive) spawn() error {
	cmd := execCommandFor(context.Background(), p.ns, p.exe, p.args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()
	return nil
}

// watch is the one cooperative task per supervised process: it polls
// liveness roughly once a second and respawns on exit, until Revert flips
// the stop flag.
func (p *supervisedProcessPrimitive) watch() {
	defer close(p.done)

	waitOnCurrent := func() <-chan error {
		ch := make(chan error, 1)
		p.mu.Lock()
		cmd := p.cmd
		p.mu.Unlock()
		go func() { ch <- cmd.Wait() }()
		return ch
	}

	exited := waitOnCurrent()
	ticker := time.NewTicker(supervisorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-exited:
			if p.stop.Load() {
				return
			}
			p.attempts++
			if err := p.spawn(); err != nil {
				// A restart failure is logged by the caller (via onRestart)
				// and the watcher keeps trying on the next poll.
				if p.onRestart != nil {
					p.onRestart(p.kind, 0, p.attempts)
				}
				<-ticker.C
				if p.stop.Load() {
					return
				}
				exited = make(chan error, 1)
				continue
			}
			p.mu.Lock()
			pid := 0
			if p.cmd.Process != nil {
				pid = p.cmd.Process.Pid
			}
			p.mu.Unlock()
			if p.onRestart != nil {
				p.onRestart(p.kind, pid, p.attempts)
			}
			exited = waitOnCurrent()
		case <-ticker.C:
			if p.stop.Load() {
				return
			}
		}
	}
}

func (p *supervisedProcessPrimitive) maybeStopSystemdResolved() {
	var out bytes.Buffer
	cmd := exec.Command("systemctl", "status", "systemd-resolved")
	cmd.Stdout = &out
	_ = cmd.Run()
	if strings.Contains(out.String(), "active (running) since") {
		if err := exec.Command("systemctl", "stop", "systemd-resolved").Run(); err == nil {
			p.resolvedStoppedBySelf = true
		}
	}
}
