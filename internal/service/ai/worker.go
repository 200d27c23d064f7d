package ai

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"potholytics/internal/logger"

	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameSize bounds a single response read from the worker.
const maxFrameSize = 256 << 20

type workerRequest struct {
	Input   Tensor   `msgpack:"input"`
	Outputs []string `msgpack:"outputs"`
}

type workerResponse struct {
	Outputs map[string]Tensor `msgpack:"outputs"`
	Error   string            `msgpack:"error"`
}

// remoteError is a failure reported by the worker itself; the stream stays usable.
type remoteError struct {
	msg string
}

func (e *remoteError) Error() string { return "worker: " + e.msg }

// WorkerRunner talks to an inference subprocess over stdin/stdout using
// length-prefixed msgpack frames (4 bytes big-endian + payload).
type WorkerRunner struct {
	w       io.Writer
	r       io.Reader
	outputs []string
	closer  func() error
	logger  *logger.Logger

	mu     sync.Mutex
	broken error
	once   sync.Once
	err    error
}

// NewWorkerRunner spawns command with the model arguments and connects to it.
func NewWorkerRunner(command string, opts RunnerOptions, logger *logger.Logger) (*WorkerRunner, error) {
	cmd := exec.Command(command,
		"--model", opts.ModelPath,
		"--kind", opts.Kind,
		"--device", opts.Device,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start inference worker: %w", err)
	}

	go logStderr(stderr, logger)

	closer := func() error {
		stdin.Close()
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			logger.Warning("Inference worker did not exit, killing pid %d", cmd.Process.Pid)
			cmd.Process.Kill()
			<-done
			return nil
		}
	}

	return newWorkerConn(stdin, stdout, opts.Outputs, closer, logger), nil
}

func newWorkerConn(w io.Writer, r io.Reader, outputs []string, closer func() error, logger *logger.Logger) *WorkerRunner {
	return &WorkerRunner{
		w:       w,
		r:       r,
		outputs: outputs,
		closer:  closer,
		logger:  logger,
	}
}

// Run sends one tensor and waits for the named outputs. A cancelled context
// tears the connection down since the stream can no longer be resynchronised.
func (w *WorkerRunner) Run(ctx context.Context, input Tensor) (map[string]Tensor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.broken != nil {
		return nil, fmt.Errorf("inference worker unusable: %w", w.broken)
	}

	type result struct {
		out map[string]Tensor
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := w.roundTrip(input)
		done <- result{out, err}
	}()

	select {
	case res := <-done:
		var remote *remoteError
		if res.err != nil && !errors.As(res.err, &remote) {
			w.broken = res.err
		}
		return res.out, res.err
	case <-ctx.Done():
		w.broken = ctx.Err()
		w.Close()
		return nil, ctx.Err()
	}
}

func (w *WorkerRunner) roundTrip(input Tensor) (map[string]Tensor, error) {
	payload, err := msgpack.Marshal(workerRequest{Input: input, Outputs: w.outputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal msgpack request: %w", err)
	}

	lengthPrefix := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthPrefix, uint32(len(payload)))
	if _, err := w.w.Write(lengthPrefix); err != nil {
		return nil, fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to write msgpack data: %w", err)
	}

	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(w.r, lengthBuf); err != nil {
		return nil, fmt.Errorf("failed to read response length: %w", err)
	}
	msgLength := binary.BigEndian.Uint32(lengthBuf)
	if msgLength > maxFrameSize {
		return nil, fmt.Errorf("response of %d bytes exceeds limit", msgLength)
	}

	data := make([]byte, msgLength)
	if _, err := io.ReadFull(w.r, data); err != nil {
		return nil, fmt.Errorf("failed to read msgpack data: %w", err)
	}

	var resp workerResponse
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal msgpack response: %w", err)
	}
	if resp.Error != "" {
		return nil, &remoteError{msg: resp.Error}
	}
	return resp.Outputs, nil
}

// Close stops the worker. It is safe to call more than once.
func (w *WorkerRunner) Close() error {
	w.once.Do(func() {
		if w.closer != nil {
			w.err = w.closer()
		}
	})
	return w.err
}

// logStderr forwards worker log lines, mapping Python level prefixes.
func logStderr(r io.Reader, logger *logger.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			logger.Error("worker: %s", line)
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			logger.Warning("worker: %s", line)
		default:
			logger.Debug("worker: %s", line)
		}
	}
}
