// Package dockerhost implements containerhost.Host against a real Docker
// Engine, grounded on the teacher's own use of github.com/docker/docker's
// client package (pkg/commands/docker.go, pkg/commands/container.go) for
// the client itself, and on the create/start/wait sequence shown in
// other_examples' cube and holt orchestrators for the parts the teacher
// never needed (it only inspects containers, it never launches them).
package dockerhost

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"

	"github.com/caelus-sim/orchestrator/internal/containerhost"
)

// Host wraps a Docker Engine API client.
type Host struct {
	client *client.Client
	log    *logrus.Entry
}

// New dials the Docker daemon the way the teacher's NewDockerCommand does:
// environment-driven configuration, API version negotiated with the
// daemon.
func New(log *logrus.Entry) (*Host, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Host{client: cli, log: log}, nil
}

func (h *Host) HasImage(ctx context.Context, ref string) (bool, error) {
	_, err := h.client.ImageInspect(ctx, ref)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (h *Host) Create(ctx context.Context, ref string, opts containerhost.CreateOptions) (containerhost.Handle, error) {
	cfg := &container.Config{
		Image:     ref,
		Env:       opts.Env,
		OpenStdin: opts.OpenStdin,
		Tty:       opts.TTY,
	}
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode(opts.NetworkName),
		AutoRemove:  false,
	}

	resp, err := h.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", err
	}
	return containerhost.Handle(resp.ID), nil
}

func (h *Host) Start(ctx context.Context, handle containerhost.Handle) error {
	return h.client.ContainerStart(ctx, string(handle), container.StartOptions{})
}

func (h *Host) Wait(ctx context.Context, handle containerhost.Handle, timeout time.Duration) (containerhost.WaitResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	statusCh, errCh := h.client.ContainerWait(waitCtx, string(handle), container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if waitCtx.Err() != nil {
			return containerhost.WaitResult{}, containerhost.ErrWaitTimeout
		}
		return containerhost.WaitResult{}, err
	case status := <-statusCh:
		result := containerhost.WaitResult{ExitCode: int(status.StatusCode)}
		if status.Error != nil {
			result.Err = status.Error.Message
		}
		return result, nil
	case <-waitCtx.Done():
		return containerhost.WaitResult{}, containerhost.ErrWaitTimeout
	}
}

func (h *Host) Stop(ctx context.Context, handle containerhost.Handle, grace time.Duration) error {
	graceSeconds := int(grace.Seconds())
	return h.client.ContainerStop(ctx, string(handle), container.StopOptions{Timeout: &graceSeconds})
}

func (h *Host) Remove(ctx context.Context, handle containerhost.Handle) error {
	return h.client.ContainerRemove(ctx, string(handle), container.RemoveOptions{Force: true})
}
