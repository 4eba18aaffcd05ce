// Package process implements the lifecycle of a single supervised mission
// container: its state machine, its supervisor goroutine, and the
// translation of container exit codes into terminal states.
package process

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caelus-sim/orchestrator/internal/containerhost"
)

// Status is one of the five states a Process can occupy.
type Status int

const (
	Created Status = iota
	Running
	Error
	Terminated
	Halted
)

func (s Status) String() string {
	switch s {
	case Created:
		return "CREATED"
	case Running:
		return "RUNNING"
	case Error:
		return "ERROR"
	case Terminated:
		return "TERMINATED"
	case Halted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is one of the absorbing states (spec.md O3).
func (s Status) Terminal() bool {
	return s == Error || s == Terminated || s == Halted
}

// Record is the StateStore-facing snapshot of a Process (spec.md §3).
type Record struct {
	ID             string
	IssuerID       string
	GroupID        string
	OperationID    string
	Image          string
	MissionPayload map[string]any
	Status         Status
	StatusMessage  string
	ErrorCode      *ExitCode
	CreatedAt      time.Time
}

// StatusString renders "STATE (message)" the way spec.md §4.1 requires.
func (r Record) StatusString() string {
	return fmt.Sprintf("%s (%s)", r.Status, r.StatusMessage)
}

// Delegate is the single-method capability a Process reports its transitions
// through. It is the statically typed expression of the "duck-typed
// delegate" spec.md §9 calls out: a Process only ever sees this interface,
// never the full manager.
type Delegate interface {
	OnStatusChanged(Record)
}

// Options configures timings a Process's supervisor uses; production code
// uses Defaults(), tests shrink them to keep unit tests fast.
type Options struct {
	NetworkName     string
	DeleteOnExit    bool
	WaitPollTimeout time.Duration // spec.md: "short timeout (~3s)"
	StopGrace       time.Duration // spec.md: "5-second grace"
	IdlePoll        time.Duration // monitor's empty-queue sleep, not used here
}

// Defaults returns the timings named in spec.md §4.1/§4.5.
func Defaults() Options {
	return Options{
		NetworkName:     "caelus_orchestrator_default",
		DeleteOnExit:    false,
		WaitPollTimeout: 3 * time.Second,
		StopGrace:       5 * time.Second,
		IdlePoll:        time.Second,
	}
}

// Process supervises exactly one container for the lifetime of one mission.
type Process struct {
	id             string
	issuerID       string
	groupID        string
	operationID    string
	image          string
	missionPayload map[string]any
	createdAt      time.Time

	host     containerhost.Host
	delegate Delegate
	log      *logrus.Entry
	opts     Options

	shouldStop atomic.Bool
	started    atomic.Bool

	status        atomic.Int32
	statusMessage atomic.Value // string
	errorCode     atomic.Value // ExitCode
	hasErrorCode  atomic.Bool
}

// NewID mints a fresh, collision-free process identifier (spec.md: "a
// random 128-bit value is sufficient"). Callers that must hand the id back
// before the Process exists (Schedule's round-trip law, spec.md §8) call
// this directly and pass it to New.
func NewID() string {
	return uuid.NewString()
}

// New constructs a Process in state CREATED with the given id. It does not
// start supervision; call Start for that.
func New(id, issuerID, image string, payload map[string]any, host containerhost.Host, delegate Delegate, log *logrus.Entry, opts Options) *Process {
	p := &Process{
		id:             id,
		issuerID:       issuerID,
		groupID:        stringField(payload, "group_id"),
		operationID:    stringField(payload, "operation_id"),
		image:          image,
		missionPayload: payload,
		createdAt:      time.Now(),
		host:           host,
		delegate:       delegate,
		log:            log,
		opts:           opts,
	}
	p.status.Store(int32(Created))
	p.statusMessage.Store("")
	return p
}

func stringField(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func (p *Process) ID() string                     { return p.id }
func (p *Process) IssuerID() string                { return p.issuerID }
func (p *Process) GroupID() string                 { return p.groupID }
func (p *Process) OperationID() string             { return p.operationID }
func (p *Process) Image() string                   { return p.image }
func (p *Process) MissionPayload() map[string]any  { return p.missionPayload }
func (p *Process) CreatedAt() time.Time            { return p.createdAt }

func (p *Process) Status() Status { return Status(p.status.Load()) }

func (p *Process) StatusMessage() string {
	s, _ := p.statusMessage.Load().(string)
	return s
}

// ErrorCode returns the reported error code, if any (spec.md: present only
// when status is not TERMINATED or HALTED).
func (p *Process) ErrorCode() (ExitCode, bool) {
	if !p.hasErrorCode.Load() {
		return 0, false
	}
	code, _ := p.errorCode.Load().(ExitCode)
	return code, true
}

// StatusText renders "STATE (message)" per spec.md §4.1.
func (p *Process) StatusText() string {
	return fmt.Sprintf("%s (%s)", p.Status(), p.StatusMessage())
}

// Snapshot returns the StateStore-facing record (spec.md to_dict()).
func (p *Process) Snapshot() Record {
	r := Record{
		ID:             p.id,
		IssuerID:       p.issuerID,
		GroupID:        p.groupID,
		OperationID:    p.operationID,
		Image:          p.image,
		MissionPayload: p.missionPayload,
		Status:         p.Status(),
		StatusMessage:  p.StatusMessage(),
		CreatedAt:      p.createdAt,
	}
	if code, ok := p.ErrorCode(); ok {
		c := code
		r.ErrorCode = &c
	}
	return r
}

// setStatus transitions the Process and notifies the delegate. Per O3,
// terminal states never transition again; callers only invoke this from the
// supervisor goroutine, which itself never continues past a terminal return.
func (p *Process) setStatus(s Status, message string, errorCode *ExitCode) {
	p.status.Store(int32(s))
	p.statusMessage.Store(message)
	if errorCode != nil {
		p.errorCode.Store(*errorCode)
		p.hasErrorCode.Store(true)
	}
	p.delegate.OnStatusChanged(p.Snapshot())
}

// Halt requests forced termination. It is cooperative and asynchronous: it
// flips a flag the supervisor polls and returns immediately, matching
// process_manager.py's halt(). Halting an already-terminal Process is a
// documented no-op.
func (p *Process) Halt() {
	p.shouldStop.Store(true)
}

// Start begins supervision on a new goroutine. Calling it twice is a
// programming error (spec.md §4.1); the second call panics.
func (p *Process) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		panic("process: Start called twice")
	}
	go p.supervise(ctx)
}

// supervise implements the algorithm in spec.md §4.1.
func (p *Process) supervise(ctx context.Context) {
	p.setStatus(Running, "", nil)

	payloadJSON, err := marshalPayload(p.missionPayload)
	if err != nil {
		p.setStatus(Error, err.Error(), nil)
		return
	}

	handle, err := p.host.Create(ctx, p.image, containerhost.CreateOptions{
		NetworkName: p.opts.NetworkName,
		Env:         []string{"PAYLOAD=" + payloadJSON},
		OpenStdin:   true,
		TTY:         true,
	})
	if err != nil {
		p.log.WithField("operation_id", p.operationID).Warnf("failed to create container: %v", err)
		p.setStatus(Error, err.Error(), nil)
		return
	}

	if err := p.host.Start(ctx, handle); err != nil {
		p.log.WithField("operation_id", p.operationID).Warnf("failed to start container: %v", err)
		p.setStatus(Error, err.Error(), nil)
		return
	}

	p.log.WithFields(logrus.Fields{
		"operation_id": p.operationID,
		"image":        p.image,
	}).Info("container started")

	status, message, code := p.monitor(ctx, handle)

	if p.opts.DeleteOnExit {
		if err := p.host.Remove(ctx, handle); err != nil {
			p.log.WithField("operation_id", p.operationID).Warnf("failed to remove container: %v", err)
		}
	}

	p.setStatus(status, message, code)
}

// monitor polls the should-stop flag and waits on the container in bounded
// quanta, per spec.md's monitor loop (step 4). It never blocks past
// WaitPollTimeout without re-checking should-stop.
func (p *Process) monitor(ctx context.Context, handle containerhost.Handle) (Status, string, *ExitCode) {
	for {
		if p.shouldStop.Load() {
			p.log.WithField("operation_id", p.operationID).Info("forceful stop requested")
			if err := p.host.Stop(ctx, handle, p.opts.StopGrace); err != nil {
				code := UndefinedError
				return Error, err.Error(), &code
			}
			return Halted, "", nil
		}

		result, err := p.host.Wait(ctx, handle, p.opts.WaitPollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				// The supervision context itself is done, not just this poll's
				// bounded sub-wait. Unlike a timeout this never clears, so
				// looping again would busy-spin forever; report it instead.
				code := UndefinedError
				return Error, ctx.Err().Error(), &code
			}
			continue // transient wait failure (including timeout): loop again, per spec.md §7
		}

		t := translateExitCode(ExitCode(result.ExitCode))
		var code *ExitCode
		if t.reported {
			c := ExitCode(result.ExitCode)
			code = &c
		}
		message := t.message
		if result.Err != "" {
			message = result.Err
		}
		return t.status, message, code
	}
}
