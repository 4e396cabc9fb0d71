package render

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"inkwell/internal/logging"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// SofficeRenderer converts documents to PDF by driving a LibreOffice
// compatible binary in headless mode. One renderer instance serves one
// extension family so interrupts stay scoped.
type SofficeRenderer struct {
	family  string
	binary  func() string
	fontDir func() string
	exec    Executor
	logger  *slog.Logger

	mu           sync.Mutex
	interrupts   map[uint64]context.CancelFunc
	interruptSeq uint64
}

// SofficeOption configures the renderer.
type SofficeOption func(*SofficeRenderer)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) SofficeOption {
	return func(r *SofficeRenderer) {
		if executor != nil {
			r.exec = executor
		}
	}
}

// NewSoffice constructs a renderer for one family. binary and fontDir are
// consulted per render so config reloads apply live.
func NewSoffice(family string, binary, fontDir func() string, logger *slog.Logger, opts ...SofficeOption) *SofficeRenderer {
	r := &SofficeRenderer{
		family:  family,
		binary:  binary,
		fontDir: fontDir,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(logger, "render."+family),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render converts sourcePath to PDF at targetPath. The conversion runs in a
// scratch directory because the converter names its own output; the result
// is moved to the exact requested target afterwards.
func (r *SofficeRenderer) Render(ctx context.Context, sourcePath, targetPath string) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	key := r.addInterrupt(cancel)
	defer r.removeInterrupt(key)

	scratch, err := os.MkdirTemp(filepath.Dir(targetPath), ".inkwell-render-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	args := []string{"--headless", "--norestore", "--convert-to", "pdf", "--outdir", scratch}
	if fonts := strings.TrimSpace(r.fontDir()); fonts != "" {
		args = append(args, "-env:SAL_FONTPATH="+fonts)
	}
	args = append(args, sourcePath)

	var tail []string
	err = r.exec.Run(runCtx, r.binary(), args, func(line string) {
		r.logger.Debug("converter output", logging.String("line", line))
		if len(tail) < 5 {
			tail = append(tail, line)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if runCtx.Err() != nil {
			return errors.New("render interrupted")
		}
		if len(tail) > 0 {
			return fmt.Errorf("%w: %s", err, strings.Join(tail, "; "))
		}
		return err
	}

	produced, err := findProducedPDF(scratch)
	if err != nil {
		return err
	}
	if err := movePDF(produced, targetPath); err != nil {
		return fmt.Errorf("place output: %w", err)
	}
	return nil
}

// RequestInterrupt aborts every in-flight render of this family. Idempotent;
// a no-op when nothing is running.
func (r *SofficeRenderer) RequestInterrupt() {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.interrupts))
	for _, cancel := range r.interrupts {
		cancels = append(cancels, cancel)
	}
	r.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Renders of one family can overlap on separate workers, so each registers
// its own cancel func under a unique key.
func (r *SofficeRenderer) addInterrupt(cancel context.CancelFunc) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interrupts == nil {
		r.interrupts = make(map[uint64]context.CancelFunc)
	}
	r.interruptSeq++
	r.interrupts[r.interruptSeq] = cancel
	return r.interruptSeq
}

func (r *SofficeRenderer) removeInterrupt(key uint64) {
	r.mu.Lock()
	delete(r.interrupts, key)
	r.mu.Unlock()
}

func findProducedPDF(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read scratch dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", errors.New("converter produced no pdf output")
}

func movePDF(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename fails across filesystems; fall back to copy + remove.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Preflight verifies the converter binary is present and executable. The
// daemon decides whether a failure is fatal (strict) or a degraded start
// where conversions fail per-mission until the binary appears.
func Preflight(binary string) error {
	if strings.TrimSpace(binary) == "" {
		return errors.New("converter binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("converter binary unavailable: %w", err)
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	return cmd.Wait()
}
