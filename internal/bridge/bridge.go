package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"chatdeck/internal/engine"
	"chatdeck/internal/logging"
)

// EventSink receives decoded backend events. The engine's Registry
// satisfies it.
type EventSink interface {
	Deliver(sessionID string, ev engine.BackendEvent)
}

// Bridge is the only component that talks to the OS-level backend
// processes. It spawns one backend process per session, reads the process's
// NDJSON event stream into the sink, and implements engine.Commander by
// writing NDJSON commands to the process stdin.
type Bridge struct {
	command string
	args    []string
	workdir string

	sink   EventSink
	logger *logging.Logger

	mu    sync.Mutex
	procs map[string]*backendProc
}

type backendProc struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc

	writeMu sync.Mutex
	stdin   io.WriteCloser
}

// New creates a bridge that runs `command args...` for each session, in
// workdir. The sink must outlive the bridge.
func New(command string, args []string, workdir string, sink EventSink, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bridge{
		command: command,
		args:    args,
		workdir: workdir,
		sink:    sink,
		logger:  logger,
		procs:   make(map[string]*backendProc),
	}
}

// Start spawns the backend for a session (if not already up) and sends the
// opening prompt with its attachments.
func (b *Bridge) Start(sessionID string, prompt string, attachments []engine.Attachment) error {
	proc, err := b.ensureProc(sessionID)
	if err != nil {
		return err
	}
	return b.writeCommand(proc, command{
		Op:          "user_prompt",
		Prompt:      prompt,
		Attachments: attachmentPayloads(attachments),
	})
}

// Continue sends a follow-up prompt on an existing conversation, spawning
// the backend first if it is not up (e.g. a session resumed from storage).
func (b *Bridge) Continue(sessionID string, prompt string) error {
	proc, err := b.ensureProc(sessionID)
	if err != nil {
		return err
	}
	return b.writeCommand(proc, command{Op: "user_prompt", Prompt: prompt})
}

// RespondPermission forwards a tool-approval answer. The backend blocks the
// gated tool call until this lands.
func (b *Bridge) RespondPermission(sessionID string, requestID string, response engine.PermissionResponse) error {
	proc, ok := b.proc(sessionID)
	if !ok {
		return fmt.Errorf("respond permission: no backend for session %s", sessionID)
	}
	return b.writeCommand(proc, command{
		Op:        "permission_response",
		RequestID: requestID,
		Response:  string(response),
	})
}

// Cancel asks the backend to stop producing events for the current turn.
// Best-effort: events already in flight may still arrive and are appended
// by the session as valid history. If the command cannot be written the
// process is killed outright.
func (b *Bridge) Cancel(sessionID string) error {
	proc, ok := b.proc(sessionID)
	if !ok {
		return nil
	}
	if err := b.writeCommand(proc, command{Op: "cancel"}); err != nil {
		proc.cancel()
		return err
	}
	return nil
}

// Close tears down every backend process.
func (b *Bridge) Close() {
	b.mu.Lock()
	procs := make([]*backendProc, 0, len(b.procs))
	for _, proc := range b.procs {
		procs = append(procs, proc)
	}
	b.procs = make(map[string]*backendProc)
	b.mu.Unlock()

	for _, proc := range procs {
		proc.cancel()
	}
}

func (b *Bridge) proc(sessionID string) (*backendProc, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	proc, ok := b.procs[sessionID]
	return proc, ok
}

func (b *Bridge) ensureProc(sessionID string) (*backendProc, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if proc, ok := b.procs[sessionID]; ok {
		return proc, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	args := append(append([]string{}, b.args...), "--session", sessionID)
	cmd := exec.CommandContext(ctx, b.command, args...)
	cmd.Dir = b.workdir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("backend stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("backend stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("backend stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start backend: %w", err)
	}

	proc := &backendProc{cmd: cmd, cancel: cancel, stdin: stdin}
	b.procs[sessionID] = proc

	go b.consumeStream(sessionID, stdout)
	go b.logStderr(sessionID, stderr)
	go b.awaitExit(sessionID, proc)

	b.logger.Info("backend started", map[string]interface{}{
		"session_id": sessionID, "pid": cmd.Process.Pid, "command": b.command,
	})
	return proc, nil
}

func (b *Bridge) writeCommand(proc *backendProc, cmd command) error {
	payload, err := encodeCommand(cmd)
	if err != nil {
		return err
	}
	proc.writeMu.Lock()
	defer proc.writeMu.Unlock()
	if _, err := proc.stdin.Write(payload); err != nil {
		return fmt.Errorf("write %s command: %w", cmd.Op, err)
	}
	return nil
}

// consumeStream decodes the backend's NDJSON stdout one event at a time and
// pushes each into the sink. Malformed or unknown lines are logged and
// skipped; the stream keeps going.
func (b *Bridge) consumeStream(sessionID string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, err := decodeStreamEvent([]byte(line))
		if err != nil {
			b.logger.Warn("skipping malformed backend line", map[string]interface{}{
				"session_id": sessionID, "error": err.Error(),
			})
			continue
		}
		target := sessionID
		if ev.SessionID != "" {
			target = ev.SessionID
		}
		backendEv, ok := toBackendEvent(ev)
		if !ok {
			b.logger.Warn("skipping unknown backend event kind", map[string]interface{}{
				"session_id": target, "kind": ev.Kind,
			})
			continue
		}
		b.sink.Deliver(target, backendEv)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		b.logger.Error("backend stream read failed", map[string]interface{}{
			"session_id": sessionID, "error": err.Error(),
		})
	}
}

func (b *Bridge) logStderr(sessionID string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		b.logger.Warn("backend stderr", map[string]interface{}{
			"session_id": sessionID, "line": scanner.Text(),
		})
	}
}

// awaitExit reaps the process. A crash surfaces to the session as an
// ordinary error line plus failed status; a clean exit completes it.
func (b *Bridge) awaitExit(sessionID string, proc *backendProc) {
	err := proc.cmd.Wait()

	b.mu.Lock()
	if b.procs[sessionID] == proc {
		delete(b.procs, sessionID)
	}
	b.mu.Unlock()
	proc.cancel()

	if err != nil {
		var exitErr *exec.ExitError
		code := -1
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		b.logger.Error("backend exited abnormally", map[string]interface{}{
			"session_id": sessionID, "exit_code": code, "error": err.Error(),
		})
		b.sink.Deliver(sessionID, engine.BackendEvent{
			Kind: engine.EventError,
			Text: fmt.Sprintf("backend process exited with code %d", code),
		})
		return
	}
	b.logger.Info("backend exited", map[string]interface{}{"session_id": sessionID})
	b.sink.Deliver(sessionID, engine.BackendEvent{
		Kind:   engine.EventStatusChanged,
		Status: engine.StatusCompleted,
	})
}
