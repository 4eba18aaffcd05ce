package process

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caelus-sim/orchestrator/internal/containerhost/fakehost"
)

type recordingDelegate struct {
	records []Record
}

func (d *recordingDelegate) OnStatusChanged(r Record) {
	d.records = append(d.records, r)
}

func testOptions() Options {
	return Options{
		NetworkName:     "test-net",
		WaitPollTimeout: 50 * time.Millisecond,
		StopGrace:       10 * time.Millisecond,
	}
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

func waitForTerminal(t *testing.T, p *Process, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.Status().Terminal() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("process did not reach a terminal state within %s (status=%s)", timeout, p.Status())
}

func TestProcess_HappyPath(t *testing.T) {
	host := fakehost.New()
	host.Behaviors["sim:ok"] = fakehost.Behavior{Delay: 20 * time.Millisecond, ExitCode: int(OK)}

	delegate := &recordingDelegate{}
	payload := map[string]any{"operation_id": "op1", "group_id": "g1"}
	p := New(NewID(), "issuer-1", "sim:ok", payload, host, delegate, testLog(), testOptions())

	p.Start(context.Background())
	waitForTerminal(t, p, time.Second)

	assert.Equal(t, Terminated, p.Status())
	_, hasCode := p.ErrorCode()
	assert.False(t, hasCode)
	require.NotEmpty(t, delegate.records)
	assert.Equal(t, Terminated, delegate.records[len(delegate.records)-1].Status)
}

func TestProcess_DomainErrorTranslation(t *testing.T) {
	host := fakehost.New()
	host.Behaviors["sim:wind"] = fakehost.Behavior{Delay: 10 * time.Millisecond, ExitCode: int(TooMuchWind)}

	delegate := &recordingDelegate{}
	payload := map[string]any{"operation_id": "op2", "group_id": "g1"}
	p := New(NewID(), "issuer-1", "sim:wind", payload, host, delegate, testLog(), testOptions())

	p.Start(context.Background())
	waitForTerminal(t, p, time.Second)

	assert.Equal(t, Error, p.Status())
	code, ok := p.ErrorCode()
	require.True(t, ok)
	assert.Equal(t, TooMuchWind, code)
	assert.Contains(t, p.StatusMessage(), "too much wind")
}

func TestProcess_Halt(t *testing.T) {
	host := fakehost.New()
	host.Behaviors["sim:long"] = fakehost.Behavior{Delay: 10 * time.Second, ExitCode: int(OK)}

	delegate := &recordingDelegate{}
	payload := map[string]any{"operation_id": "op3", "group_id": "g1"}
	p := New(NewID(), "issuer-1", "sim:long", payload, host, delegate, testLog(), testOptions())

	p.Start(context.Background())

	// give it time to reach RUNNING before halting
	deadline := time.Now().Add(time.Second)
	for p.Status() != Running && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, Running, p.Status())

	p.Halt()
	waitForTerminal(t, p, time.Second)

	assert.Equal(t, Halted, p.Status())
	_, hasCode := p.ErrorCode()
	assert.False(t, hasCode)
}

func TestProcess_StartupFailure(t *testing.T) {
	host := fakehost.New()
	host.Behaviors["sim:bad"] = fakehost.Behavior{CreateErr: assertErr("boom")}

	delegate := &recordingDelegate{}
	payload := map[string]any{"operation_id": "op4", "group_id": "g1"}
	p := New(NewID(), "issuer-1", "sim:bad", payload, host, delegate, testLog(), testOptions())

	p.Start(context.Background())
	waitForTerminal(t, p, time.Second)

	assert.Equal(t, Error, p.Status())
	_, hasCode := p.ErrorCode()
	assert.False(t, hasCode, "startup failures carry no error_code per spec.md §4.2")
	assert.Contains(t, p.StatusMessage(), "boom")
}

func TestProcess_TerminalStateIsAbsorbing(t *testing.T) {
	host := fakehost.New()
	host.Behaviors["sim:ok"] = fakehost.Behavior{Delay: 5 * time.Millisecond, ExitCode: int(OK)}

	delegate := &recordingDelegate{}
	payload := map[string]any{"operation_id": "op5", "group_id": "g1"}
	p := New(NewID(), "issuer-1", "sim:ok", payload, host, delegate, testLog(), testOptions())

	p.Start(context.Background())
	waitForTerminal(t, p, time.Second)

	callsAtTerminal := len(delegate.records)
	// Halting an already-terminal process is documented as a no-op: no
	// further transition should ever fire.
	p.Halt()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, callsAtTerminal, len(delegate.records))
}

func TestTranslateExitCode(t *testing.T) {
	cases := []struct {
		name       string
		code       ExitCode
		wantStatus Status
		wantCode   bool
	}{
		{"ok", OK, Terminated, false},
		{"sigterm", SIGTERM, Halted, false},
		{"sigkill", SIGKILL, Halted, false},
		{"mission upload fail", MissionUploadFail, Error, true},
		{"stream read failure", StreamReadFailure, Error, true},
		{"vehicle timed out", VehicleTimedOut, Error, true},
		{"premature landing", PrematureLanding, Error, true},
		{"unknown vehicle", UnknownVehicle, Error, true},
		{"px4 sim desync", PX4SimDesync, Error, true},
		{"too much wind", TooMuchWind, Error, true},
		{"unrecognised code falls through to generic error", ExitCode(77), Error, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translateExitCode(tc.code)
			assert.Equal(t, tc.wantStatus, got.status)
			assert.Equal(t, tc.wantCode, got.reported)
		})
	}
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertErr(msg string) error {
	return simpleError(msg)
}
