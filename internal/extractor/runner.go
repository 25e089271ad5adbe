package extractor

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/vmunix/audiarr/internal/provider"
)

// progressPattern matches the extractor's stderr progress lines, e.g.
// "[download]  45.2% of 3.52MiB at 1.21MiB/s".
var progressPattern = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

// Result is the outcome of a successful fetch.
type Result struct {
	FilePath  string
	ProcessID int
}

// Hooks observe a running fetch. OnStart fires once the subprocess is
// spawned, before any stderr is read, so callers can persist the process
// handle while the fetch is still live. OnProgress receives monotonically
// increasing percentages capped at 99 during the run and exactly 100 on
// successful exit.
type Hooks struct {
	OnStart    func(processID int)
	OnProgress func(percent int)
}

// Runner spawns the extractor in fetch mode and streams its progress.
type Runner struct {
	cfg      Config
	registry *registry
	log      *slog.Logger
}

// NewRunner creates a fetch runner.
func NewRunner(cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, registry: newRegistry(), log: log}
}

// Execute fetches url with the extractor and reports progress through
// hooks. It blocks until the subprocess exits. On success the output root
// is returned together with the process handle.
func (r *Runner) Execute(ctx context.Context, url string, prov provider.Provider, hooks Hooks) (*Result, error) {
	args := buildFetchArgs(r.cfg, url, prov)
	// Cancel is the sole kill path. The fetch is not tied to ctx: caller
	// cancellation during shutdown leaves an in-flight subprocess to
	// finish on its own.
	cmd := exec.Command(r.cfg.binPath(), args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrExtractorFailed, err)
	}

	pid := cmd.Process.Pid
	r.registry.add(pid, cmd)
	defer r.registry.remove(pid)

	r.log.Info("extractor started", "pid", pid, "provider", prov, "url", url)
	if hooks.OnStart != nil {
		hooks.OnStart(pid)
	}

	ring := newLineRing(64)
	last := -1
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		ring.Add(line)

		m := progressPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		// Cap at 99 during the run; 100 is reserved for a clean exit.
		progress := int(math.Floor(pct))
		if progress > 99 {
			progress = 99
		}
		if progress > last {
			last = progress
			if hooks.OnProgress != nil {
				hooks.OnProgress(progress)
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		tail := ring.Tail()
		if exitErr, ok := err.(*exec.ExitError); ok {
			r.log.Warn("extractor exited non-zero", "pid", pid, "exit_code", exitErr.ExitCode())
			return nil, &ExitError{Code: exitErr.ExitCode(), Tail: tail}
		}
		return nil, fmt.Errorf("%w: wait: %v", ErrExtractorFailed, err)
	}

	if hooks.OnProgress != nil {
		hooks.OnProgress(100)
	}
	r.log.Info("extractor finished", "pid", pid)
	return &Result{FilePath: r.cfg.TempDir, ProcessID: pid}, nil
}

// Cancel force-kills a live extractor process. The interrupted Execute
// call returns a failure; the caller decides how to classify it.
func (r *Runner) Cancel(processID int) error {
	cmd, ok := r.registry.get(processID)
	if !ok {
		return fmt.Errorf("cancel %d: %w", processID, ErrProcessNotFound)
	}
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill %d: %w", processID, err)
	}
	r.log.Info("extractor killed", "pid", processID)
	return nil
}

// Live returns the number of registered running processes.
func (r *Runner) Live() int {
	return r.registry.size()
}
