package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewBaseProcess_Defaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp/workdir")

	require.NotNil(t, bp)
	require.Equal(t, StatusPending, bp.Status())
	require.Equal(t, "/tmp/workdir", bp.WorkDir())
	require.Equal(t, KindNative, bp.Kind())
	require.False(t, bp.CaptureStderr())
	require.NotNil(t, bp.Events())
	require.NotNil(t, bp.Stderr())
	require.NotNil(t, bp.Errors())
	require.False(t, bp.SawOutput())
}

func TestNewBaseProcess_WithKind(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithKind(KindGptExec))

	require.Equal(t, KindGptExec, bp.Kind())
}

func TestNewBaseProcess_WithStderrCapture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithStderrCapture(true))

	require.True(t, bp.CaptureStderr())
}

func TestNewBaseProcess_WithParseEventFunc(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	parseFunc := func(line []byte) (Envelope, error) {
		return Envelope{Type: EventMessage}, nil
	}

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithParseEventFunc(parseFunc))

	require.NotNil(t, bp.parseEventFn)

	env, err := bp.parseEventFn([]byte("test"))
	require.NoError(t, err)
	require.Equal(t, EventMessage, env.Type)
}

func TestNewBaseProcess_WithEventParser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	parser := ParserFunc(func(data []byte) (Envelope, error) {
		return Envelope{Type: EventLog}, nil
	})

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithEventParser(parser))

	require.NotNil(t, bp.parseEventFn)

	env, err := bp.parseEventFn([]byte("test"))
	require.NoError(t, err)
	require.Equal(t, EventLog, env.Type)
}

func TestBaseProcess_Status(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	require.Equal(t, StatusPending, bp.Status())

	bp.SetStatus(StatusRunning)
	require.Equal(t, StatusRunning, bp.Status())

	bp.SetStatus(StatusCompleted)
	require.Equal(t, StatusCompleted, bp.Status())
}

func TestBaseProcess_IsRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	require.False(t, bp.IsRunning())

	bp.SetStatus(StatusRunning)
	require.True(t, bp.IsRunning())

	bp.SetStatus(StatusCompleted)
	require.False(t, bp.IsRunning())

	bp.SetStatus(StatusFailed)
	require.False(t, bp.IsRunning())

	bp.SetStatus(StatusCancelled)
	require.False(t, bp.IsRunning())
}

func TestBaseProcess_PID_NilCmd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bp := NewBaseProcess(ctx, cancel, nil, nil, nil, "/tmp")

	require.Equal(t, -1, bp.PID())
}

func TestBaseProcess_PID_NilProcess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Command not started yet, so Process will be nil
	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	require.Equal(t, -1, bp.PID())
}

func TestBaseProcess_PID_WithProcess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "sleep", "1")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	err := cmd.Start()
	require.NoError(t, err)
	defer func() {
		cancel()
		_ = cmd.Wait()
	}()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	pid := bp.PID()
	require.Greater(t, pid, 0)
}

func TestBaseProcess_SessionRef(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	require.Empty(t, bp.SessionRef())

	bp.SetSessionRef("session-xyz-123")
	require.Equal(t, "session-xyz-123", bp.SessionRef())

	bp.SetSessionRef("new-session-456")
	require.Equal(t, "new-session-456", bp.SessionRef())
}

func TestBaseProcess_ExitState_BeforeExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	_, exited := bp.ExitState()
	require.False(t, exited)
}

func TestBaseProcess_StderrLines_CopySemantics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithStderrCapture(true))

	require.Empty(t, bp.StderrLines())

	bp.mu.Lock()
	bp.stderrLines = append(bp.stderrLines, "Error line 1", "Error line 2")
	bp.mu.Unlock()

	lines := bp.StderrLines()
	require.Len(t, lines, 2)
	require.Equal(t, "Error line 1", lines[0])

	// Modifying the returned slice must not affect internal state.
	lines[0] = "Modified"
	internalLines := bp.StderrLines()
	require.Equal(t, "Error line 1", internalLines[0])
}

func TestBaseProcess_SendError_Success(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	bp.SendError(io.EOF)

	select {
	case err := <-bp.Errors():
		require.Equal(t, io.EOF, err)
	default:
		t.Fatal("Expected error to be sent")
	}
}

func TestBaseProcess_SendError_ChannelFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	// Fill up the error channel (capacity is 10)
	for i := 0; i < 10; i++ {
		bp.errors <- io.EOF
	}

	// This should not block - the error is dropped and logged
	bp.SendError(io.ErrUnexpectedEOF)

	count := 0
	for range bp.Errors() {
		count++
		if count >= 10 {
			break
		}
	}
	require.Equal(t, 10, count)
}

func TestBaseProcess_Context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	require.Equal(t, ctx, bp.Context())
}

func TestBaseProcess_Cmd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	require.Equal(t, cmd, bp.Cmd())
}

// mockWriteCloser implements io.WriteCloser for testing
type mockWriteCloser struct {
	*bytes.Buffer
	closed bool
}

func newMockWriteCloser() *mockWriteCloser {
	return &mockWriteCloser{Buffer: new(bytes.Buffer)}
}

func (m *mockWriteCloser) Close() error {
	m.closed = true
	return nil
}

func TestBaseProcess_SetStdin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	require.Nil(t, bp.Stdin())

	mockStdin := newMockWriteCloser()
	bp.SetStdin(mockStdin)
	require.Equal(t, mockStdin, bp.Stdin())
}

// ============================================================================
// Lifecycle Method Tests
// ============================================================================

func TestBaseProcess_Cancel_SetsStatusBeforeCancelFunc(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancelCalled := false
	statusAtCancel := StatusPending

	cmd := exec.Command("sleep", "10")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")
	bp.SetStatus(StatusRunning)

	// Override cancelFunc to capture status when called
	bp.cancelFunc = func() {
		statusAtCancel = bp.Status()
		cancelCalled = true
		cancel()
	}

	err := bp.Cancel()
	require.NoError(t, err)
	require.True(t, cancelCalled, "cancelFunc should have been called")
	require.Equal(t, StatusCancelled, statusAtCancel, "status should be Cancelled BEFORE cancelFunc is called")
	require.Equal(t, StatusCancelled, bp.Status())
}

func TestBaseProcess_Cancel_NoOpWhenTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status ProcessStatus
	}{
		{"Completed", StatusCompleted},
		{"Failed", StatusFailed},
		{"Cancelled", StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cancelCalled := false
			cmd := exec.Command("echo", "test")
			stdout, _ := cmd.StdoutPipe()
			stderr, _ := cmd.StderrPipe()

			bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")
			bp.SetStatus(tt.status)
			bp.cancelFunc = func() {
				cancelCalled = true
				cancel()
			}

			err := bp.Cancel()
			require.NoError(t, err)
			require.False(t, cancelCalled, "cancelFunc should NOT be called when already terminal")
			require.Equal(t, tt.status, bp.Status(), "status should not change")
		})
	}
}

func TestBaseProcess_Cancel_ConcurrentCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")
	bp.SetStatus(StatusRunning)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bp.Cancel()
		}()
	}
	wg.Wait()

	require.Equal(t, StatusCancelled, bp.Status())
}

func TestBaseProcess_Wait_BlocksUntilComplete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	bp.wg.Add(1)

	waitDone := make(chan struct{})
	go func() {
		_ = bp.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		t.Fatal("Wait should block until goroutines complete")
	case <-time.After(50 * time.Millisecond):
		// Expected - still blocking
	}

	bp.wg.Done()

	select {
	case <-waitDone:
		// Expected
	case <-time.After(time.Second):
		t.Fatal("Wait should complete after wg.Done()")
	}
}

func TestBaseProcess_StartGoroutines_LaunchesThree(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithParseEventFunc(func(line []byte) (Envelope, error) {
			return Envelope{Type: EventMessage}, nil
		}))

	err := cmd.Start()
	require.NoError(t, err)

	bp.StartGoroutines()

	err = bp.Wait()
	require.NoError(t, err)

	// Goroutines should have run and closed channels
	select {
	case _, ok := <-bp.Events():
		if ok {
			for range bp.Events() {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("Events channel should be closed")
	}
}

// mockReadCloser implements io.ReadCloser for testing
type mockReadCloser struct {
	*bytes.Reader
	closed bool
}

func newMockReadCloser(data string) *mockReadCloser {
	return &mockReadCloser{Reader: bytes.NewReader([]byte(data))}
}

func (m *mockReadCloser) Close() error {
	m.closed = true
	return nil
}

func TestBaseProcess_parseOutput_EmitsEnvelopes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jsonLine := `{"type":"message","text":"hello"}`
	stdout := newMockReadCloser(jsonLine + "\n")
	stderr := newMockReadCloser("")

	eventsParsed := 0
	parseFunc := func(line []byte) (Envelope, error) {
		eventsParsed++
		return Envelope{Type: EventMessage, Text: "hello"}, nil
	}

	cmd := exec.Command("echo", "test")
	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithParseEventFunc(parseFunc))

	bp.wg.Add(1)
	go bp.parseOutput()

	env := <-bp.Events()
	require.Equal(t, EventMessage, env.Type)
	require.Equal(t, 1, eventsParsed)
	require.Equal(t, jsonLine, string(env.Raw), "Raw should carry the original line")
	require.False(t, env.Timestamp.IsZero(), "Timestamp should be stamped")

	bp.wg.Wait()
	require.True(t, bp.SawOutput())
}

func TestBaseProcess_parseOutput_SkipsEmptyLines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout := newMockReadCloser("\n\n" + `{"type":"message"}` + "\n")
	stderr := newMockReadCloser("")

	eventsParsed := 0
	parseFunc := func(line []byte) (Envelope, error) {
		eventsParsed++
		return Envelope{Type: EventMessage}, nil
	}

	cmd := exec.Command("echo", "test")
	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithParseEventFunc(parseFunc))

	bp.wg.Add(1)
	go bp.parseOutput()

	for range bp.Events() {
	}
	bp.wg.Wait()

	require.Equal(t, 1, eventsParsed, "empty lines should not reach the parser")
	// An empty line is still output for startup-failure purposes.
	require.True(t, bp.SawOutput())
}

func TestBaseProcess_parseOutput_SkipsUnparseableLines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines := "garbage\n" + `{"type":"message"}` + "\n"
	stdout := newMockReadCloser(lines)
	stderr := newMockReadCloser("")

	parseFunc := func(line []byte) (Envelope, error) {
		if string(line) == "garbage" {
			return Envelope{}, io.ErrUnexpectedEOF
		}
		return Envelope{Type: EventMessage}, nil
	}

	cmd := exec.Command("echo", "test")
	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithParseEventFunc(parseFunc))

	bp.wg.Add(1)
	go bp.parseOutput()

	received := 0
	for range bp.Events() {
		received++
	}
	bp.wg.Wait()

	require.Equal(t, 1, received, "unparseable lines should be skipped, not fatal")
}

func TestBaseProcess_parseOutput_ClaudeSessionSetsSessionRef(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines := `{"type":"claude-session","sessionId":"first"}` + "\n" +
		`{"type":"claude-session","sessionId":"second"}` + "\n"
	stdout := newMockReadCloser(lines)
	stderr := newMockReadCloser("")

	parseFunc := func(line []byte) (Envelope, error) {
		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return Envelope{}, err
		}
		return env, nil
	}

	cmd := exec.Command("echo", "test")
	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithParseEventFunc(parseFunc))

	bp.wg.Add(1)
	go bp.parseOutput()

	for range bp.Events() {
	}
	bp.wg.Wait()

	// Only the first claude-session envelope sets the ref.
	require.Equal(t, "first", bp.SessionRef())
}

func TestBaseProcess_parseOutput_PresetSessionRefWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout := newMockReadCloser(`{"type":"claude-session","sessionId":"from-child"}` + "\n")
	stderr := newMockReadCloser("")

	parseFunc := func(line []byte) (Envelope, error) {
		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return Envelope{}, err
		}
		return env, nil
	}

	cmd := exec.Command("echo", "test")
	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithParseEventFunc(parseFunc))
	bp.SetSessionRef("resumed-id")

	bp.wg.Add(1)
	go bp.parseOutput()

	for range bp.Events() {
	}
	bp.wg.Wait()

	require.Equal(t, "resumed-id", bp.SessionRef())
}

func TestBaseProcess_parseStderr_ForwardsLines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stderr := newMockReadCloser("error line 1\nerror line 2\n")
	stdout := newMockReadCloser("")

	cmd := exec.Command("echo", "test")
	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")

	bp.wg.Add(1)
	go bp.parseStderr()

	var lines []string
	for line := range bp.Stderr() {
		lines = append(lines, line)
	}
	bp.wg.Wait()

	require.Equal(t, []string{"error line 1", "error line 2"}, lines)
	require.True(t, bp.SawOutput())
}

func TestBaseProcess_parseStderr_CapturesWhenEnabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stderr := newMockReadCloser("error line 1\nerror line 2\n")
	stdout := newMockReadCloser("")

	cmd := exec.Command("echo", "test")
	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithStderrCapture(true))

	bp.wg.Add(1)
	go bp.parseStderr()

	for range bp.Stderr() {
	}
	bp.wg.Wait()

	lines := bp.StderrLines()
	require.Len(t, lines, 2)
	require.Equal(t, "error line 1", lines[0])
	require.Equal(t, "error line 2", lines[1])
}

func TestBaseProcess_parseStderr_SkipsCaptureWhenDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stderr := newMockReadCloser("error line 1\n")
	stdout := newMockReadCloser("")

	cmd := exec.Command("echo", "test")
	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithStderrCapture(false))

	bp.wg.Add(1)
	go bp.parseStderr()

	for range bp.Stderr() {
	}
	bp.wg.Wait()

	require.Empty(t, bp.StderrLines())
}

func TestBaseProcess_waitForCompletion_SetsStatusCompleted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("echo", "test")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")
	bp.SetStatus(StatusRunning)

	err := cmd.Start()
	require.NoError(t, err)

	bp.StartGoroutines()
	bp.Wait()

	require.Equal(t, StatusCompleted, bp.Status())

	exit, exited := bp.ExitState()
	require.True(t, exited)
	require.Equal(t, 0, exit.Code)
	require.Empty(t, exit.Signal)
	require.True(t, exit.Success())
}

func TestBaseProcess_waitForCompletion_SetsStatusFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("sh", "-c", "exit 3")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithKind(KindGptExec))
	bp.SetStatus(StatusRunning)

	err := cmd.Start()
	require.NoError(t, err)

	bp.StartGoroutines()
	bp.Wait()

	require.Equal(t, StatusFailed, bp.Status())

	exit, exited := bp.ExitState()
	require.True(t, exited)
	require.Equal(t, 3, exit.Code)
	require.False(t, exit.Success())

	select {
	case err := <-bp.Errors():
		require.Contains(t, err.Error(), "gpt-exec child exited")
	default:
		t.Fatal("Expected error to be sent")
	}
}

func TestBaseProcess_waitForCompletion_RecordsSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("sleep", "10")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")
	bp.SetStatus(StatusRunning)

	err := cmd.Start()
	require.NoError(t, err)

	require.NoError(t, cmd.Process.Kill())

	bp.StartGoroutines()
	bp.Wait()

	exit, exited := bp.ExitState()
	require.True(t, exited)
	require.Equal(t, -1, exit.Code)
	require.Equal(t, "SIGKILL", exit.Signal)
	require.False(t, exit.Success())
}

func TestBaseProcess_waitForCompletion_IncludesStderrInError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("sh", "-c", "echo 'stderr error' >&2; exit 1")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp",
		WithStderrCapture(true))
	bp.SetStatus(StatusRunning)

	err := cmd.Start()
	require.NoError(t, err)

	bp.StartGoroutines()
	bp.Wait()

	require.Equal(t, StatusFailed, bp.Status())
	require.True(t, bp.SawOutput(), "stderr bytes count as output")

	select {
	case err := <-bp.Errors():
		require.Contains(t, err.Error(), "stderr error")
		require.Contains(t, err.Error(), "child failed")
	default:
		t.Fatal("Expected error to be sent")
	}
}

func TestBaseProcess_waitForCompletion_SilentExitLeavesSawOutputFalse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.Command("sh", "-c", "exit 1")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")
	bp.SetStatus(StatusRunning)

	err := cmd.Start()
	require.NoError(t, err)

	bp.StartGoroutines()
	bp.Wait()

	// Exactly the startup-failure signature: exited, nothing written.
	require.False(t, bp.SawOutput())
	_, exited := bp.ExitState()
	require.True(t, exited)
}

func TestBaseProcess_waitForCompletion_DetectsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sleep", "1")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")
	bp.SetStatus(StatusRunning)

	err := cmd.Start()
	require.NoError(t, err)

	bp.StartGoroutines()
	bp.Wait()

	require.Equal(t, StatusFailed, bp.Status())

	select {
	case err := <-bp.Errors():
		require.Equal(t, ErrTimeout, err)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Expected ErrTimeout to be sent")
	}
}

func TestBaseProcess_waitForCompletion_PreservesCancelledStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cmd := exec.CommandContext(ctx, "sleep", "1")
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	bp := NewBaseProcess(ctx, cancel, cmd, stdout, stderr, "/tmp")
	bp.SetStatus(StatusCancelled)

	err := cmd.Start()
	require.NoError(t, err)

	cancel()

	bp.StartGoroutines()
	bp.Wait()

	require.Equal(t, StatusCancelled, bp.Status())
}

func TestBaseProcess_parseOutput_ScannerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errReader := &errorReader{err: io.ErrUnexpectedEOF}
	stderr := newMockReadCloser("")

	cmd := exec.Command("echo", "test")
	bp := NewBaseProcess(ctx, cancel, cmd, errReader, stderr, "/tmp",
		WithParseEventFunc(func(line []byte) (Envelope, error) {
			return Envelope{Type: EventMessage}, nil
		}))

	bp.wg.Add(1)
	go bp.parseOutput()
	bp.wg.Wait()

	select {
	case err := <-bp.Errors():
		require.Contains(t, err.Error(), "scanner error")
	default:
		t.Fatal("Expected scanner error to be sent")
	}
}

// errorReader is a reader that always returns an error
type errorReader struct {
	err error
}

func (e *errorReader) Read(p []byte) (int, error) {
	return 0, e.err
}

func (e *errorReader) Close() error {
	return nil
}

func TestErrTimeout(t *testing.T) {
	require.NotNil(t, ErrTimeout)
	require.Contains(t, ErrTimeout.Error(), "timed out")
}
