package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/camerahost/internal/logging"
)

const (
	defaultGracefulTimeout = 5 * time.Second
	defaultKillTimeout     = 5 * time.Second
	exitCodeKilled         = 137
)

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output.
type LogParser func(line string) (level, msg string)

// Options configures a Process.
type Options struct {
	// Stdout consumes the child's stdout. When nil stdout lines are logged
	// like stderr. Whatever the consumer leaves unread is discarded.
	Stdout func(io.Reader)
	// Stdin keeps a pipe to the child's stdin, see Process.Stdin.
	Stdin bool
	// StdinEOFStops makes Stop close stdin and wait for the child to finish
	// on its own before falling back to a kill. Encoders reading pipe:0
	// finalize their output this way.
	StdinEOFStops bool
	// OnExit is called once with the exit code and the error from Wait.
	OnExit func(exitCode int, err error)
	// OutputLogger receives the child's log lines; defaults to the process logger.
	OutputLogger logging.Logger
	// LogParser maps log lines to levels; nil logs every line at info.
	LogParser LogParser

	GracefulTimeout time.Duration
	KillTimeout     time.Duration
}

// Process manages the lifecycle of one subprocess.
type Process struct {
	id      string
	command string
	logger  logging.Logger
	opts    Options

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	state     State
	startedAt time.Time
	exitCode  int
	lastErr   error
	done      chan struct{}
}

// New creates a process for command. Nothing runs until Start.
func New(id, command string, logger logging.Logger, opts Options) *Process {
	if opts.GracefulTimeout <= 0 {
		opts.GracefulTimeout = defaultGracefulTimeout
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = defaultKillTimeout
	}
	return &Process{
		id:      id,
		command: command,
		logger:  logger,
		opts:    opts,
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// Command returns the command line the process runs.
func (p *Process) Command() string {
	return p.command
}

// Start launches the subprocess and returns once it is running.
func (p *Process) Start() error {
	args, err := parseCommand(p.command)
	if err != nil {
		return p.failStart(fmt.Errorf("parse command: %w", err))
	}
	if len(args) == 0 {
		return p.failStart(errors.New("empty command"))
	}

	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return fmt.Errorf("process %s already started", p.id)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.mu.Unlock()
		return p.failStart(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.mu.Unlock()
		return p.failStart(err)
	}
	if p.opts.Stdin {
		stdin, stdinErr := cmd.StdinPipe()
		if stdinErr != nil {
			p.mu.Unlock()
			return p.failStart(stdinErr)
		}
		p.stdin = stdin
	}

	if startErr := cmd.Start(); startErr != nil {
		p.mu.Unlock()
		return p.failStart(startErr)
	}

	p.cmd = cmd
	p.state = StateRunning
	p.startedAt = time.Now()
	p.mu.Unlock()

	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid, "command", p.command)

	var outputs sync.WaitGroup
	outputs.Add(2)
	go func() {
		defer outputs.Done()
		if p.opts.Stdout != nil {
			p.opts.Stdout(stdout)
			_, _ = io.Copy(io.Discard, stdout)
			return
		}
		p.streamOutput(stdout)
	}()
	go func() {
		defer outputs.Done()
		p.streamOutput(stderr)
	}()

	go func() {
		outputs.Wait()
		p.finish(cmd.Wait())
	}()

	return nil
}

// Stdin returns the child's stdin when Options.Stdin was set, or nil.
func (p *Process) Stdin() io.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return nil
	}
	return p.stdin
}

// Done is closed once the process has exited or failed to start.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Info returns a snapshot of the process.
func (p *Process) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := Info{
		ID:        p.id,
		State:     p.state,
		StartedAt: p.startedAt,
		ExitCode:  p.exitCode,
		LastError: p.lastErr,
	}
	if p.cmd != nil && p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	return info
}

// Stop closes stdin, sends SIGINT and waits for the process to exit,
// force killing it after the graceful timeout. Returns the exit code.
// Safe to call more than once and after the process has exited.
func (p *Process) Stop() int {
	p.mu.Lock()
	switch p.state {
	case StateIdle:
		p.state = StateExited
		p.mu.Unlock()
		p.closeDone()
		return 0
	case StateRunning:
		p.state = StateStopping
	}
	stdin := p.stdin
	cmd := p.cmd
	p.mu.Unlock()

	select {
	case <-p.done:
		return p.Info().ExitCode
	default:
	}

	if stdin != nil {
		_ = stdin.Close()
	}
	if stdin == nil || !p.opts.StdinEOFStops {
		p.sendStopSignal(cmd)
	}
	return p.waitForExit(cmd)
}

func (p *Process) failStart(err error) error {
	p.logger.Error("Failed to start process", "id", p.id, "error", err, "command", p.command)
	p.mu.Lock()
	p.state = StateError
	p.lastErr = err
	p.exitCode = 1
	p.mu.Unlock()
	p.closeDone()
	if p.opts.OnExit != nil {
		p.opts.OnExit(1, err)
	}
	return err
}

func (p *Process) finish(waitErr error) {
	exitCode := exitCodeFromError(waitErr)

	p.mu.Lock()
	switch {
	case p.state == StateStopping:
		p.state = StateExited
	case exitCode != 0:
		p.state = StateError
		p.lastErr = waitErr
	default:
		p.state = StateExited
	}
	if p.exitCode != exitCodeKilled {
		p.exitCode = exitCode
	}
	exitCode = p.exitCode
	p.mu.Unlock()

	p.logger.Info("Process exited", "id", p.id, "exit_code", exitCode)
	p.closeDone()
	if p.opts.OnExit != nil {
		p.opts.OnExit(exitCode, waitErr)
	}
}

func (p *Process) closeDone() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		return exitCodeKilled
	}
	return 1
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	p.logger.Debug("Sending SIGINT to process", "id", p.id, "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "id", p.id, "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Process) waitForExit(cmd *exec.Cmd) int {
	select {
	case <-p.done:
		return p.Info().ExitCode
	case <-time.After(p.opts.GracefulTimeout):
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", p.opts.GracefulTimeout)
	p.mu.Lock()
	p.exitCode = exitCodeKilled
	p.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "id", p.id, "error", err)
		}
	}

	select {
	case <-p.done:
	case <-time.After(p.opts.KillTimeout):
		p.logger.Error("Process did not exit after kill signal", "id", p.id)
	}
	return exitCodeKilled
}

// streamOutput logs each line of reader at the level the parser reports.
func (p *Process) streamOutput(reader io.Reader) {
	logger := p.opts.OutputLogger
	if logger == nil {
		logger = p.logger
	}
	logLines(reader, logger, p.opts.LogParser)
}

func logLines(reader io.Reader, logger logging.Logger, parser LogParser) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		level, msg := "info", line
		if parser != nil {
			level, msg = parser(line)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}
}

// Output runs command to completion and returns its stdout. stderr is
// logged through parser. A non-zero exit returns the tail of stderr in the error.
func Output(ctx context.Context, command string, logger logging.Logger, parser LogParser) ([]byte, error) {
	args, err := parseCommand(command)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running command", "command", command)
	runErr := cmd.Run()
	logLines(bytes.NewReader(stderr.Bytes()), logger, parser)
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", args[0], ctxErr)
		}
		return nil, fmt.Errorf("%s exited with code %d: %s: %w",
			args[0], exitCodeFromError(runErr), lastLine(stderr.String()), runErr)
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// parseCommand parses a command string into arguments.
// Handles single and double quotes and backslash escapes.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoted := false
	quoteChar := rune(0)

	runes := []rune(strings.TrimSpace(command))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoted = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, errors.New("unclosed quote in command")
	}

	return args, nil
}
