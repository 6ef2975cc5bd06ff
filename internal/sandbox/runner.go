// Package sandbox executes one untrusted code submission together with its
// verification harness as an isolated OS process.
//
// Guarantees:
//   - Each execution gets its own temp directory, removed on every exit path
//   - The child runs in its own process group (Setpgid) and the whole group
//     is terminated on a limit breach, so no descendant outlives the run
//   - Wall-clock time and resident memory are polled at a short interval
//   - No environment inheritance from the parent — only a minimal safe set
//   - stdout/stderr are capped to prevent OOM from chatty submissions
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/agonlabs/agon/internal/model"
)

const (
	// maxOutputBytes caps stdout/stderr capture.
	maxOutputBytes = 1 << 20 // 1 MB

	defaultInterpreter = "python3"
	defaultPoll        = 20 * time.Millisecond
	defaultTimeoutS    = 30
	defaultMemLimitMB  = 256

	// killGrace is how long the process group gets to exit after SIGTERM
	// before it is SIGKILLed.
	killGrace = 500 * time.Millisecond
)

// Request describes one submission execution.
type Request struct {
	Code       string
	Harness    string
	TimeoutS   int
	MemLimitMB int
}

// Config tunes a Runner. Zero values select defaults.
type Config struct {
	Interpreter  string
	PollInterval time.Duration
}

// Runner executes exactly one submission. Concurrency across submissions is
// achieved by creating one Runner per submission, never by sharing one.
type Runner struct {
	interpreter string
	poll        time.Duration
	logger      *slog.Logger
	used        atomic.Bool
}

// NewRunner creates a single-use runner.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	interpreter := cfg.Interpreter
	if interpreter == "" {
		interpreter = defaultInterpreter
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPoll
	}
	return &Runner{interpreter: interpreter, poll: poll, logger: logger}
}

// Execute runs the submission and harness as one program. The submission
// comes first so the harness can reference symbols it defines. Failures are
// encoded in the outcome rather than returned: a sandbox problem is a result,
// not an orchestrator crash. Cancelling ctx terminates the process group.
func (r *Runner) Execute(ctx context.Context, req Request) model.ExecutionOutcome {
	if !r.used.CompareAndSwap(false, true) {
		return failure("sandbox runner already used")
	}

	timeoutS := req.TimeoutS
	if timeoutS <= 0 {
		timeoutS = defaultTimeoutS
	}
	memLimitMB := req.MemLimitMB
	if memLimitMB <= 0 {
		memLimitMB = defaultMemLimitMB
	}

	dir, err := os.MkdirTemp("", "agon-sandbox-")
	if err != nil {
		return failure(fmt.Sprintf("create sandbox dir: %v", err))
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			r.logger.Warn("failed to remove sandbox dir", "dir", dir, "error", rmErr)
		}
	}()

	program := filepath.Join(dir, "program")
	unit := req.Code + "\n\n" + req.Harness + "\n"
	if err := os.WriteFile(program, []byte(unit), 0o644); err != nil {
		return failure(fmt.Sprintf("write program: %v", err))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(r.interpreter, program)
	cmd.Dir = dir
	cmd.Env = sandboxEnv(dir)
	cmd.Stdout = &limitedWriter{w: &stdout, remaining: maxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderr, remaining: maxOutputBytes}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return failure(fmt.Sprintf("start program: %v", err))
	}
	pid := cmd.Process.Pid

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	var peakMB float64
	timeout := time.Duration(timeoutS) * time.Second

	for {
		select {
		case waitErr := <-waitCh:
			return r.finish(waitErr, stdout.String(), stderr.String(), time.Since(start), peakMB)

		case <-ctx.Done():
			r.terminate(pid, waitCh)
			return model.ExecutionOutcome{
				Success:      false,
				Output:       stdout.String(),
				Error:        fmt.Sprintf("execution canceled: %v", ctx.Err()),
				Duration:     time.Since(start),
				MemoryPeakMB: peakMB,
				TestsPassed:  0,
				TestsTotal:   1,
			}

		case <-ticker.C:
			if time.Since(start) >= timeout {
				r.terminate(pid, waitCh)
				return model.ExecutionOutcome{
					Success:      false,
					Output:       stdout.String(),
					Error:        fmt.Sprintf("Timeout after %ds", timeoutS),
					Duration:     time.Since(start),
					MemoryPeakMB: peakMB,
					TestsPassed:  0,
					TestsTotal:   1,
				}
			}

			rssMB, ok := residentMB(pid)
			if !ok {
				// Process vanished between polls: a race with normal
				// completion. Let Wait deliver the result.
				continue
			}
			if rssMB > peakMB {
				peakMB = rssMB
			}
			if rssMB > float64(memLimitMB) {
				r.terminate(pid, waitCh)
				return model.ExecutionOutcome{
					Success:      false,
					Output:       stdout.String(),
					Error:        fmt.Sprintf("Memory limit exceeded: %.1fMB > %dMB", rssMB, memLimitMB),
					Duration:     time.Since(start),
					MemoryPeakMB: peakMB,
					TestsPassed:  0,
					TestsTotal:   1,
				}
			}
		}
	}
}

// finish builds the outcome for a normally exited process.
func (r *Runner) finish(waitErr error, stdout, stderr string, dur time.Duration, peakMB float64) model.ExecutionOutcome {
	passed, total := ParseSummary(stdout)

	errText := ""
	exitOK := waitErr == nil
	if !exitOK {
		errText = strings.TrimSpace(stderr)
		if errText == "" {
			errText = waitErr.Error()
		}
	}

	return model.ExecutionOutcome{
		Success:      exitOK && passed == total,
		Output:       stdout,
		Error:        errText,
		Duration:     dur,
		MemoryPeakMB: peakMB,
		TestsPassed:  passed,
		TestsTotal:   total,
	}
}

// terminate kills the child's entire process group: SIGTERM first, SIGKILL
// after a short grace period, then reaps the waiter.
func (r *Runner) terminate(pid int, waitCh <-chan error) {
	// Negative PID targets the whole group.
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	select {
	case <-waitCh:
	case <-time.After(killGrace):
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		<-waitCh
	}
}

// residentMB reads the child's current resident set size from
// /proc/<pid>/status. ok is false when the process no longer exists.
func residentMB(pid int) (float64, bool) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, false
		}
		return kb / 1024, true
	}
	return 0, false
}

// sandboxEnv builds a minimal environment. The parent's environment is never
// inherited, so host credentials cannot leak into submissions.
func sandboxEnv(dir string) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"LANG=en_US.UTF-8",
		"TERM=dumb",
	}
}

// failure is an outcome for runs that never produced a harness report.
// Fail-closed: one test, zero passed.
func failure(errText string) model.ExecutionOutcome {
	return model.ExecutionOutcome{
		Success:     false,
		Error:       errText,
		TestsPassed: 0,
		TestsTotal:  1,
	}
}

// limitedWriter stops writing after a byte limit; excess is discarded.
type limitedWriter struct {
	w         io.Writer
	remaining int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.remaining <= 0 {
		return len(p), nil
	}
	n := len(p)
	if n > lw.remaining {
		p = p[:lw.remaining]
	}
	written, err := lw.w.Write(p)
	lw.remaining -= written
	if err != nil {
		return written, err
	}
	return n, nil
}
