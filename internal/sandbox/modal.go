package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/modal-labs/libmodal/modal-go"

	"github.com/ksadov/backcast/internal/config"
)

// ModalRunner executes code in ephemeral Modal sandboxes. One sandbox is
// created per Run call and terminated when it returns, so a leaked execution
// cannot outlive its example.
type ModalRunner struct {
	client  *modal.Client
	cfg     config.SandboxConfig
	appName string
}

// NewModalRunner creates a runner backed by the configured Modal workspace.
func NewModalRunner(cfg config.SandboxConfig, appName string) (*ModalRunner, error) {
	if appName == "" {
		appName = "backcast-interpreter"
	}

	slog.Debug("initializing modal client", "app", appName)
	client, err := modal.NewClient()
	if err != nil {
		return nil, fmt.Errorf("creating modal client: %w", err)
	}

	return &ModalRunner{
		client:  client,
		cfg:     cfg,
		appName: appName,
	}, nil
}

// Run executes the code with python3 -c inside a fresh sandbox.
func (r *ModalRunner) Run(ctx context.Context, code string) (Output, error) {
	app, err := r.client.Apps.FromName(ctx, r.appName, &modal.AppFromNameParams{
		CreateIfMissing: true,
	})
	if err != nil {
		return Output{}, fmt.Errorf("resolving modal app: %w", err)
	}

	image := r.client.Images.FromRegistry(r.cfg.Image, nil)

	timeLimit := time.Duration(r.cfg.TimeLimitSec * float64(time.Second))
	if timeLimit <= 0 {
		timeLimit = 5 * time.Second
	}

	sandbox, err := r.client.Sandboxes.Create(ctx, app, image, &modal.SandboxCreateParams{
		CPU:       1,
		MemoryMiB: r.cfg.MemoryMB,
		// The sandbox lifetime bounds the whole exec, including interpreter
		// startup; the exec itself carries the configured limit.
		Timeout: timeLimit + 30*time.Second,
	})
	if err != nil {
		return Output{}, fmt.Errorf("creating modal sandbox: %w", err)
	}
	defer func() {
		if err := sandbox.Terminate(context.Background()); err != nil {
			slog.Warn("terminating modal sandbox", "sandbox_id", sandbox.SandboxID, "error", err)
		}
	}()

	slog.Debug("executing code in modal sandbox",
		"sandbox_id", sandbox.SandboxID,
		"code_bytes", len(code),
		"time_limit", timeLimit)

	process, err := sandbox.Exec(ctx, []string{"python3", "-c", code}, &modal.SandboxExecParams{
		Timeout: timeLimit,
	})
	if err != nil {
		return Output{}, fmt.Errorf("executing code: %w", err)
	}

	var stdout, stderr strings.Builder
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(&stdout, process.Stdout)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(&stderr, process.Stderr)
		done <- struct{}{}
	}()
	<-done
	<-done

	exitCode, err := process.Wait(ctx)
	if err != nil {
		return Output{}, fmt.Errorf("waiting for interpreter: %w", err)
	}

	return Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, nil
}
