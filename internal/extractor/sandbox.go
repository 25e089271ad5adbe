package extractor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// Sandbox runs the extractor binary with caller-supplied arguments and
// returns its raw output. It is a passthrough for debugging extractor
// behavior; nothing it runs touches the download queue.
type Sandbox struct {
	cfg Config
	log *slog.Logger
}

// NewSandbox creates a sandbox runner.
func NewSandbox(cfg Config, log *slog.Logger) *Sandbox {
	if log == nil {
		log = slog.Default()
	}
	return &Sandbox{cfg: cfg, log: log}
}

// SandboxResult is the buffered outcome of one sandbox run.
type SandboxResult struct {
	Stdout       string `json:"stdout"`
	Stderr       string `json:"stderr"`
	ExitCode     int    `json:"exitCode"`
	IsJSONOutput bool   `json:"isJsonOutput"`
}

// Run executes the extractor with args and buffers both streams. A
// non-zero exit is reported in the result, not as an error.
func (s *Sandbox) Run(ctx context.Context, args []string) (*SandboxResult, error) {
	cmd := exec.CommandContext(ctx, s.cfg.binPath(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.log.Info("sandbox run", "args", args)
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrExtractorFailed, err)
		}
		exitCode = exitErr.ExitCode()
	}

	out := stdout.String()
	return &SandboxResult{
		Stdout:       out,
		Stderr:       stderr.String(),
		ExitCode:     exitCode,
		IsJSONOutput: json.Valid([]byte(out)),
	}, nil
}

// SandboxEvent is one typed event of a streaming sandbox run.
type SandboxEvent struct {
	Type     string `json:"type"`
	Line     string `json:"line,omitempty"`
	Progress int    `json:"progress,omitempty"`
	ExitCode int    `json:"exitCode,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Stream executes the extractor with args and emits typed events as its
// output arrives: start, stdout, stderr, progress, then either complete
// or error. emit is called from multiple goroutines; the callback must
// be safe for that, or callers serialize it themselves.
func (s *Sandbox) Stream(ctx context.Context, args []string, emit func(SandboxEvent)) error {
	cmd := exec.CommandContext(ctx, s.cfg.binPath(), args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		emit(SandboxEvent{Type: "error", Error: err.Error()})
		return fmt.Errorf("%w: start: %v", ErrExtractorFailed, err)
	}
	emit(SandboxEvent{Type: "start", Line: strconv.Itoa(cmd.Process.Pid)})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			emit(SandboxEvent{Type: "stdout", Line: scanner.Text()})
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			emit(SandboxEvent{Type: "stderr", Line: line})
			if m := progressPattern.FindStringSubmatch(line); m != nil {
				if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
					emit(SandboxEvent{Type: "progress", Progress: int(pct)})
				}
			}
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			emit(SandboxEvent{Type: "complete", ExitCode: exitErr.ExitCode()})
			return nil
		}
		emit(SandboxEvent{Type: "error", Error: err.Error()})
		return fmt.Errorf("%w: wait: %v", ErrExtractorFailed, err)
	}
	emit(SandboxEvent{Type: "complete", ExitCode: 0})
	return nil
}
