// Package manager implements the Process Manager: the scheduler/supervisor
// that owns the admission queue, the capacity-bounded pool of active
// Processes, the monitor loop, and the StateStore delegate hooks (spec.md
// §4.5).
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/caelus-sim/orchestrator/internal/containerhost"
	"github.com/caelus-sim/orchestrator/internal/process"
	"github.com/caelus-sim/orchestrator/internal/queue"
	"github.com/caelus-sim/orchestrator/internal/store"
)

// Options configures a Manager. Production code uses Defaults(); tests
// shrink MonitorIdle and the embedded process.Options to keep runs fast.
type Options struct {
	MaxConcurrentProcesses int
	MonitorIdle            time.Duration // spec.md: "sleep ~1s to avoid busy-waiting"
	Process                process.Options
}

// Defaults mirrors the Python original's default of 8 concurrent
// processes (process_manager.py: max_concurrent_processes=8).
func Defaults() Options {
	return Options{
		MaxConcurrentProcesses: 8,
		MonitorIdle:            time.Second,
		Process:                process.Defaults(),
	}
}

// Manager is the Process Manager (spec.md §4.5).
type Manager struct {
	opts  Options
	host  containerhost.Host
	store store.Store
	log   *logrus.Entry

	queue *queue.Queue

	mu     deadlock.Mutex // guards active/old, per spec.md §5 "Shared resources"
	active map[string]*process.Process
	old    map[string]*process.Process

	stop   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	// processCtx is handed to every supervised Process and to the store
	// writes its lifecycle triggers. It is deliberately never canceled by
	// Close: Close's contract is that active Processes "continue running
	// to completion," and a Process whose Wait loop is handed a canceled
	// context can never again genuinely block on its container (see
	// process.monitor) — it would otherwise busy-spin until the container
	// happens to exit on its own.
	processCtx context.Context
}

// New constructs a Manager, runs the boot sequence (CleanupDangling), and
// starts the monitor goroutine — matching process_manager.py's __init__,
// which does the same before returning.
func New(host containerhost.Host, st store.Store, log *logrus.Entry, opts Options) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:       opts,
		host:       host,
		store:      st,
		log:        log,
		queue:      queue.New(),
		active:     map[string]*process.Process{},
		old:        map[string]*process.Process{},
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		processCtx: context.Background(),
	}

	if err := st.CleanupDangling(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("manager: cleanup dangling: %w", err)
	}

	go m.monitor()
	return m, nil
}

// Schedule admits a mission. It returns ("", nil) if the image is not
// present on the ContainerHost (spec.md: "Returns None"), and a
// SubmissionError carrying DuplicateOperation if an active Process already
// claims the same operation_id (invariant O1). Enqueue never blocks.
func (m *Manager) Schedule(ctx context.Context, image string, payload map[string]any, issuerID string) (string, error) {
	has, err := m.host.HasImage(ctx, image)
	if err != nil {
		return "", fmt.Errorf("manager: checking image %q: %w", image, err)
	}
	if !has {
		return "", nil
	}

	operationID, _ := payload["operation_id"].(string)

	m.mu.Lock()
	duplicate := lo.SomeBy(lo.Values(m.active), func(p *process.Process) bool {
		return p.OperationID() == operationID
	})
	m.mu.Unlock()
	if duplicate {
		return "", duplicateOperationError(operationID)
	}

	id := process.NewID()
	effectiveStart := effectiveStartTime(payload)

	m.log.WithFields(logrus.Fields{
		"operation_id": operationID,
		"image":        image,
		"start_time":   effectiveStart,
	}).Info("enqueueing mission")

	m.queue.Put(queue.Item{
		EffectiveStartTime: effectiveStart,
		ID:                 id,
		Image:              image,
		MissionPayload:     payload,
		IssuerID:           issuerID,
	})
	return id, nil
}

// Halt requests forced termination of an active process. It returns false
// if process_id is not in the active set, including already-terminal
// processes (spec.md §4.5); halting a queued-but-not-started process is not
// supported in this core.
func (m *Manager) Halt(processID string) bool {
	m.mu.Lock()
	p, ok := m.active[processID]
	m.mu.Unlock()
	if !ok {
		m.log.Warnf("tried to halt a non-active process (%s)", processID)
		return false
	}
	m.log.Infof("sending force stop command for process %s", processID)
	p.Halt()
	return true
}

// QueueFor returns a snapshot of queued entries submitted by issuerID, in
// heap order (spec.md get_queue_for).
func (m *Manager) QueueFor(issuerID string) []queue.Item {
	return m.queue.SnapshotFor(issuerID)
}

// ProcessesInfo returns {active, old} state-name maps (spec.md
// processes_info). A nil map is returned for an empty set, matching the
// original's None.
func (m *Manager) ProcessesInfo() (active, old map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.active) > 0 {
		active = make(map[string]string, len(m.active))
		for id, p := range m.active {
			active[id] = p.Status().String()
		}
	}
	if len(m.old) > 0 {
		old = make(map[string]string, len(m.old))
		for id, p := range m.old {
			old[id] = p.Status().String()
		}
	}
	return active, old
}

// OnStatusChanged is the Delegate callback every Process reports its
// transitions through; it forwards the update to the StateStore before
// returning, satisfying invariant O4.
func (m *Manager) OnStatusChanged(record process.Record) {
	if err := m.store.UpdateProcessStatus(m.processCtx, record); err != nil {
		m.log.WithField("process_id", record.ID).Errorf("failed to persist status change: %v", err)
	}
}

// Close stops the monitor goroutine and waits for it to exit. It does not
// halt any active Processes; they continue running to completion on
// processCtx, matching a daemon-thread's "exits with the process" semantics
// for a graceful Go shutdown path instead. m.cancel only tears down the
// boot-sequence context; it is never wired to a running Process.
func (m *Manager) Close() {
	m.cancel()
	close(m.stop)
	<-m.done
}

// monitor implements spec.md §4.5's monitor loop.
func (m *Manager) monitor() {
	defer close(m.done)

	for {
		select {
		case <-m.stop:
			return
		default:
		}

		m.reap()
		m.dequeue()

		if m.queue.Empty() {
			select {
			case <-time.After(m.opts.MonitorIdle):
			case <-m.stop:
				return
			}
		}
	}
}

// reap walks the active set and moves terminal Processes to old (step 1-2
// of spec.md's monitor loop); runningCount does the counting.
func (m *Manager) reap() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.active {
		if p.Status().Terminal() {
			m.old[id] = p
			delete(m.active, id)
		}
	}
}

// runningCount counts every non-terminal Process in the active set. A
// Process that dequeue has just started may still be CREATED until its
// supervisor goroutine runs; counting it keeps the cap from being exceeded.
func (m *Manager) runningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, p := range m.active {
		if !p.Status().Terminal() {
			count++
		}
	}
	return count
}

// dequeue implements step 3 of spec.md's monitor loop: if capacity allows
// and the queue head is due, pop it and start a new Process.
func (m *Manager) dequeue() {
	if m.runningCount() >= m.opts.MaxConcurrentProcesses {
		return
	}

	item, ok := m.queue.TryPop(time.Now())
	if !ok {
		return
	}

	m.log.WithFields(logrus.Fields{
		"process_id": item.ID,
		"image":      item.Image,
	}).Info("dequeued mission, starting process")

	p := process.New(item.ID, item.IssuerID, item.Image, item.MissionPayload, m.host, m, m.log, m.opts.Process)

	m.mu.Lock()
	m.active[p.ID()] = p
	m.mu.Unlock()

	if err := m.store.StoreNewProcess(m.processCtx, p.Snapshot()); err != nil {
		m.log.WithField("process_id", p.ID()).Errorf("failed to persist new process: %v", err)
	}

	p.Start(m.processCtx)
}

func effectiveStartTime(payload map[string]any) int64 {
	switch v := payload["effective_start_time"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return time.Now().Unix()
	}
}
