// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/stratuscode/orchestrator/pkg/observability"
)

// DockerProvider implements Provider by cloning each sandbox's git
// working tree into its own container and running commands in it via
// docker exec. Grounded on the container-exec/stdcopy pattern of the
// product's container executor, trimmed to the simpler create/get/
// runCommand/snapshot/stop contract this package's Provider interface
// asks for (no container rotation, runtime-strategy abstraction, or
// trace-line filtering — those served a multi-tenant scheduler this
// orchestrator doesn't have).
type DockerProvider struct {
	client *client.Client
	image  string
	logger *zap.Logger
	tracer observability.Tracer

	snapshotDir string
}

// DockerProviderConfig configures a DockerProvider.
type DockerProviderConfig struct {
	// DockerHost is the daemon endpoint; empty uses the client default
	// (respecting DOCKER_HOST).
	DockerHost string
	// Image is the container image cloned repos run in.
	Image string
	// SnapshotDir is where Snapshot archives a working tree's contents
	// (as a tarball) and Resume restores one from.
	SnapshotDir string
	Logger      *zap.Logger
	Tracer      observability.Tracer
}

// NewDockerProvider dials the Docker daemon and verifies it's reachable.
func NewDockerProvider(ctx context.Context, cfg DockerProviderConfig) (*DockerProvider, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.DockerHost))
	} else {
		opts = append(opts, client.FromEnv)
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("sandbox: create docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("sandbox: ping docker daemon: %w", err)
	}
	if cfg.Image == "" {
		cfg.Image = "ghcr.io/stratuscode/sandbox-base:latest"
	}
	return &DockerProvider{
		client:      cli,
		image:       cfg.Image,
		logger:      cfg.Logger,
		tracer:      cfg.Tracer,
		snapshotDir: cfg.SnapshotDir,
	}, nil
}

// Create clones owner/repo at branch into a fresh container.
func (p *DockerProvider) Create(ctx context.Context, owner, repo, branch string) (string, error) {
	resp, err := p.client.ContainerCreate(ctx,
		&container.Config{
			Image:      p.image,
			Cmd:        []string{"sleep", "infinity"},
			WorkingDir: "/workspace",
		},
		&container.HostConfig{},
		nil, nil, "",
	)
	if err != nil {
		return "", fmt.Errorf("sandbox: create container: %w", err)
	}
	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("sandbox: start container: %w", err)
	}

	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	if _, err := p.exec(ctx, resp.ID, []string{"git", "clone", "--branch", branch, "--single-branch", cloneURL, "/workspace"}, "/", nil); err != nil {
		_ = p.Stop(ctx, resp.ID)
		return "", fmt.Errorf("sandbox: clone %s/%s@%s: %w", owner, repo, branch, err)
	}
	return resp.ID, nil
}

// Get verifies the container backing sandboxID is still present.
func (p *DockerProvider) Get(ctx context.Context, sandboxID string) error {
	if _, err := p.client.ContainerInspect(ctx, sandboxID); err != nil {
		if errdefs.IsNotFound(err) {
			return &GoneError{SandboxID: sandboxID}
		}
		return fmt.Errorf("sandbox: inspect %s: %w", sandboxID, err)
	}
	return nil
}

// RunCommand execs argv inside the sandbox's container.
func (p *DockerProvider) RunCommand(ctx context.Context, sandboxID string, argv []string, workingDir string, env map[string]string) (Result, error) {
	start := time.Now()
	res, err := p.exec(ctx, sandboxID, argv, workingDir, env)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return Result{}, &GoneError{SandboxID: sandboxID}
		}
		return Result{}, err
	}
	res.DurationMs = time.Since(start).Milliseconds()
	return res, nil
}

func (p *DockerProvider) exec(ctx context.Context, containerID string, argv []string, workingDir string, env map[string]string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("sandbox: empty command")
	}

	var span *observability.Span
	if p.tracer != nil {
		var spanCtx context.Context
		spanCtx, span = p.tracer.StartSpan(ctx, "sandbox.exec",
			observability.WithAttribute("container_id", containerID),
			observability.WithAttribute("command", strings.Join(argv, " ")),
		)
		ctx = spanCtx
		defer p.tracer.EndSpan(span)
	}

	var envVars []string
	for k, v := range env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", k, v))
	}
	if workingDir == "" {
		workingDir = "/workspace"
	}

	execCfg := container.ExecOptions{
		Cmd:          argv,
		Env:          envVars,
		WorkingDir:   workingDir,
		AttachStdout: true,
		AttachStderr: true,
	}
	execID, err := p.client.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: exec create: %w", err)
	}
	attach, err := p.client.ContainerExecAttach(ctx, execID.ID, container.ExecAttachOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: exec attach: %w", err)
	}
	defer attach.Close()

	var stdout, stderr strings.Builder
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil && err != io.EOF {
		return Result{}, fmt.Errorf("sandbox: read output: %w", err)
	}

	inspect, err := p.client.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: exec inspect: %w", err)
	}

	if p.logger != nil {
		p.logger.Debug("sandbox command completed",
			zap.String("container_id", containerID),
			zap.Strings("argv", argv),
			zap.Int("exit_code", inspect.ExitCode),
		)
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: inspect.ExitCode}, nil
}

// Snapshot archives the container's /workspace to snapshotDir as a tar
// stream keyed by a generated snapshot id, then stops the container.
func (p *DockerProvider) Snapshot(ctx context.Context, sandboxID string) (string, error) {
	reader, _, err := p.client.CopyFromContainer(ctx, sandboxID, "/workspace")
	if err != nil {
		return "", fmt.Errorf("sandbox: copy workspace: %w", err)
	}
	defer reader.Close()

	snapshotID := fmt.Sprintf("snap_%s", sandboxID)
	if err := p.writeSnapshot(snapshotID, reader); err != nil {
		return "", err
	}
	if err := p.Stop(ctx, sandboxID); err != nil {
		return "", fmt.Errorf("sandbox: stop after snapshot: %w", err)
	}
	return snapshotID, nil
}

// Resume creates a fresh container and restores a previously archived
// /workspace into it.
func (p *DockerProvider) Resume(ctx context.Context, snapshotID string) (string, error) {
	resp, err := p.client.ContainerCreate(ctx,
		&container.Config{Image: p.image, Cmd: []string{"sleep", "infinity"}, WorkingDir: "/workspace"},
		&container.HostConfig{}, nil, nil, "",
	)
	if err != nil {
		return "", fmt.Errorf("sandbox: create container for resume: %w", err)
	}
	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("sandbox: start container for resume: %w", err)
	}
	tar, err := p.readSnapshot(snapshotID)
	if err != nil {
		_ = p.Stop(ctx, resp.ID)
		return "", &GoneError{SandboxID: snapshotID}
	}
	defer tar.Close()
	if err := p.client.CopyToContainer(ctx, resp.ID, "/", tar, container.CopyToContainerOptions{}); err != nil {
		_ = p.Stop(ctx, resp.ID)
		return "", fmt.Errorf("sandbox: restore workspace: %w", err)
	}
	return resp.ID, nil
}

// Stop removes the container outright.
func (p *DockerProvider) Stop(ctx context.Context, sandboxID string) error {
	timeout := 5
	_ = p.client.ContainerStop(ctx, sandboxID, container.StopOptions{Timeout: &timeout})
	return p.client.ContainerRemove(ctx, sandboxID, container.RemoveOptions{Force: true})
}

// Close releases the underlying Docker client connection.
func (p *DockerProvider) Close() error {
	return p.client.Close()
}
