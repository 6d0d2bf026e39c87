package dependency

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Doubles (Fakes)
// ============================================================================

// FakeExecutor is a test double that records commands instead of running processes.
type FakeExecutor struct {
	// ResponseToReturn is the preset response returned by ExecuteCommand.
	ResponseToReturn CommandResponse

	// ErrorToReturn is the preset error returned by ExecuteCommand.
	ErrorToReturn error

	// HealthErr is returned by HealthCheck.
	HealthErr error

	// ModeToReport is returned by Mode (defaults to local).
	ModeToReport ExecutionMode

	// ExecutedCommands records all commands that were executed, for assertion purposes.
	ExecutedCommands []CommandRequest

	// HealthCheckCalled tracks whether HealthCheck was called.
	HealthCheckCalled bool
}

func (f *FakeExecutor) ExecuteCommand(ctx context.Context, req CommandRequest) (CommandResponse, error) {
	f.ExecutedCommands = append(f.ExecutedCommands, req)
	return f.ResponseToReturn, f.ErrorToReturn
}

func (f *FakeExecutor) HealthCheck(ctx context.Context) error {
	f.HealthCheckCalled = true
	return f.HealthErr
}

func (f *FakeExecutor) Mode() ExecutionMode {
	if f.ModeToReport == "" {
		return ModeLocal
	}
	return f.ModeToReport
}

func newTestClient(t *testing.T, fake *FakeExecutor) *Client {
	t.Helper()
	return NewClientWithExecutor(fake, ExecutorConfig{
		OutputDir:      t.TempDir(),
		DefaultTimeout: 5 * time.Second,
	})
}

// writeWAV writes a canonical 16 kHz mono 16-bit file of the given length.
func writeWAV(t *testing.T, path string, durationMs int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, SampleRate, 16, Channels, 1)
	samples := SampleRate * durationMs / 1000
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           make([]int, samples),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

// ============================================================================
// Client Tests
// ============================================================================

func TestClient_NormalizeAudio_BuildsCanonicalArgs(t *testing.T) {
	fake := &FakeExecutor{ResponseToReturn: CommandResponse{Success: true}}
	client := newTestClient(t, fake)

	out, err := client.NormalizeAudio(context.Background(), "/tmp/upload.m4a")
	require.NoError(t, err)

	require.Len(t, fake.ExecutedCommands, 1)
	req := fake.ExecutedCommands[0]
	assert.Equal(t, "ffmpeg", req.Command)
	assert.Equal(t, []string{"-y", "-i", "/tmp/upload.m4a", "-ac", "1", "-ar", "16000", "-sample_fmt", "s16", out}, req.Args)
	assert.True(t, strings.HasSuffix(out, ".wav"))
	assert.Equal(t, 5*time.Second, req.Timeout)
}

func TestClient_NormalizeAudio_UniquePaths(t *testing.T) {
	fake := &FakeExecutor{ResponseToReturn: CommandResponse{Success: true}}
	client := newTestClient(t, fake)

	a, err := client.NormalizeAudio(context.Background(), "/tmp/a.mp3")
	require.NoError(t, err)
	b, err := client.NormalizeAudio(context.Background(), "/tmp/a.mp3")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestClient_NormalizeAudio_NonZeroExit(t *testing.T) {
	fake := &FakeExecutor{ResponseToReturn: CommandResponse{
		Success:  false,
		ExitCode: 1,
		Stderr:   "line1\nInvalid data found when processing input\n",
	}}
	client := newTestClient(t, fake)

	_, err := client.NormalizeAudio(context.Background(), "/tmp/garbage.bin")
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 1, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Stderr, "Invalid data found")
}

func TestClient_NormalizeAudio_ExecutorError(t *testing.T) {
	fake := &FakeExecutor{ErrorToReturn: context.DeadlineExceeded}
	client := newTestClient(t, fake)

	_, err := client.NormalizeAudio(context.Background(), "/tmp/slow.mp3")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_RejectsUnsafeInput(t *testing.T) {
	fake := &FakeExecutor{ResponseToReturn: CommandResponse{Success: true}}
	client := newTestClient(t, fake)

	_, err := client.NormalizeAudio(context.Background(), "/tmp/../etc/passwd")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsafeArgument)
	assert.Empty(t, fake.ExecutedCommands)
}

func TestClient_ExtractSegment_Args(t *testing.T) {
	fake := &FakeExecutor{ResponseToReturn: CommandResponse{Success: true}}
	client := newTestClient(t, fake)

	out, err := client.ExtractSegment(context.Background(), "/tmp/in.wav", 29000, 59000)
	require.NoError(t, err)

	require.Len(t, fake.ExecutedCommands, 1)
	assert.Equal(t, []string{
		"-y", "-i", "/tmp/in.wav",
		"-ss", "29.000", "-t", "30.000",
		"-ac", "1", "-ar", "16000", "-sample_fmt", "s16",
		out,
	}, fake.ExecutedCommands[0].Args)
}

func TestClient_ExtractSegment_InvalidRange(t *testing.T) {
	fake := &FakeExecutor{}
	client := newTestClient(t, fake)

	_, err := client.ExtractSegment(context.Background(), "/tmp/in.wav", 5000, 5000)
	assert.ErrorIs(t, err, ErrInvalidSegment)
	assert.Empty(t, fake.ExecutedCommands)
}

func TestClient_DurationMs_FromWAVHeader(t *testing.T) {
	tests := []struct {
		name       string
		durationMs int
	}{
		{"two seconds", 2000},
		{"exactly one window", 30000},
		{"one minute", 60000},
		{"no samples", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &FakeExecutor{}
			client := newTestClient(t, fake)

			path := filepath.Join(t.TempDir(), "clip.wav")
			writeWAV(t, path, tt.durationMs)

			ms, err := client.DurationMs(context.Background(), path)
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.durationMs), ms, 0.01)
			assert.Equal(t, int64(tt.durationMs), int64(ms), "truncated duration must not overshoot")
			assert.Empty(t, fake.ExecutedCommands, "wav files should not need ffprobe")
		})
	}
}

func TestClient_DurationMs_IgnoresMetadataChunk(t *testing.T) {
	fake := &FakeExecutor{}
	client := newTestClient(t, fake)

	path := filepath.Join(t.TempDir(), "tagged.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, SampleRate, 16, Channels, 1)
	enc.Metadata = &wav.Metadata{Title: "meeting", Artist: "recorder"}
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           make([]int, SampleRate),
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	ms, err := client.DurationMs(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, ms, 0.01)
}

func TestClient_DurationMs_FallsBackToFFprobe(t *testing.T) {
	fake := &FakeExecutor{ResponseToReturn: CommandResponse{Success: true, Stdout: "65.250000\n"}}
	client := newTestClient(t, fake)

	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3 not really mp3"), 0o600))

	ms, err := client.DurationMs(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 65250.0, ms, 0.001)
	require.Len(t, fake.ExecutedCommands, 1)
	assert.Equal(t, "ffprobe", fake.ExecutedCommands[0].Command)
}

func TestClient_DurationMs_BadProbeOutput(t *testing.T) {
	fake := &FakeExecutor{ResponseToReturn: CommandResponse{Success: true, Stdout: "N/A"}}
	client := newTestClient(t, fake)

	path := filepath.Join(t.TempDir(), "clip.ogg")
	require.NoError(t, os.WriteFile(path, []byte("OggS"), 0o600))

	_, err := client.DurationMs(context.Background(), path)
	assert.Error(t, err)
}

func TestClient_HealthCheck(t *testing.T) {
	fake := &FakeExecutor{HealthErr: errors.New("ffmpeg missing")}
	client := newTestClient(t, fake)

	assert.Error(t, client.HealthCheck(context.Background()))
	assert.True(t, fake.HealthCheckCalled)
}

// ============================================================================
// Validator Tests
// ============================================================================

func TestValidateCommandRequest(t *testing.T) {
	cfg := ExecutorConfig{AllowedCommands: []string{"ffmpeg", "ffprobe"}}

	tests := []struct {
		name    string
		req     CommandRequest
		wantErr error
	}{
		{"allowed", CommandRequest{Command: "ffmpeg", Args: []string{"-i", "/tmp/a.wav"}}, nil},
		{"not whitelisted", CommandRequest{Command: "rm", Args: []string{"-rf", "/tmp"}}, ErrCommandNotAllowed},
		{"traversal", CommandRequest{Command: "ffmpeg", Args: []string{"-i", "../secret.wav"}}, ErrUnsafeArgument},
		{"system dir", CommandRequest{Command: "ffprobe", Args: []string{"/proc/self/environ"}}, ErrUnsafeArgument},
		{"exact system dir", CommandRequest{Command: "ffprobe", Args: []string{"/dev"}}, ErrUnsafeArgument},
		{"similar prefix ok", CommandRequest{Command: "ffmpeg", Args: []string{"/devdata/a.wav"}}, nil},
		{"dots in name ok", CommandRequest{Command: "ffmpeg", Args: []string{"/tmp/a..b.wav"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommandRequest(tt.req, cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateCommandRequest_EmptyWhitelistAllowsAll(t *testing.T) {
	err := ValidateCommandRequest(CommandRequest{Command: "sox"}, ExecutorConfig{})
	assert.NoError(t, err)
}

// ============================================================================
// NewExecutor Tests
// ============================================================================

func TestNewExecutor(t *testing.T) {
	exec, err := NewExecutor(ExecutorConfig{})
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, exec.Mode())

	_, err = NewExecutor(ExecutorConfig{Mode: ModeRemote})
	assert.ErrorIs(t, err, ErrServiceURLRequired)

	_, err = NewExecutor(ExecutorConfig{Mode: ModeFallback})
	assert.ErrorIs(t, err, ErrServiceURLRequired)

	exec, err = NewExecutor(ExecutorConfig{Mode: ModeFallback, ServiceURL: "http://deps:8080"})
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, exec.Mode())

	_, err = NewExecutor(ExecutorConfig{Mode: "docker"})
	var modeErr *InvalidModeError
	assert.True(t, errors.As(err, &modeErr))
}

// ============================================================================
// RemoteExecutor Tests
// ============================================================================

func TestRemoteExecutor_ExecuteCommand(t *testing.T) {
	var got CommandRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/execute", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(CommandResponse{Success: true, Stdout: "ok", DurationMs: 12})
	}))
	defer server.Close()

	exec := NewRemoteExecutor(ExecutorConfig{ServiceURL: server.URL, DefaultTimeout: 3 * time.Second})
	resp, err := exec.ExecuteCommand(context.Background(), CommandRequest{Command: "ffmpeg", Args: []string{"-version"}})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.Stdout)
	assert.Equal(t, int64(12), resp.DurationMs)
	assert.Equal(t, "ffmpeg", got.Command)
	assert.Equal(t, 3*time.Second, got.Timeout)
}

func TestRemoteExecutor_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(CommandResponse{Success: false, ExitCode: 1, Stderr: "boom"})
	}))
	defer server.Close()

	exec := NewRemoteExecutor(ExecutorConfig{ServiceURL: server.URL, DefaultTimeout: time.Second})
	_, err := exec.ExecuteCommand(context.Background(), CommandRequest{Command: "ffmpeg"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRemoteExecutor_HealthCheck(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := NewRemoteExecutor(ExecutorConfig{ServiceURL: server.URL, DefaultTimeout: time.Second})
	assert.NoError(t, exec.HealthCheck(context.Background()))

	healthy = false
	assert.Error(t, exec.HealthCheck(context.Background()))
}

// ============================================================================
// FallbackExecutor Tests
// ============================================================================

func TestFallbackExecutor_NetworkErrorFallsBackToLocal(t *testing.T) {
	remote := &FakeExecutor{
		ModeToReport:  ModeRemote,
		ErrorToReturn: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
	}
	local := &FakeExecutor{ResponseToReturn: CommandResponse{Success: true, Stdout: "local"}}
	exec := newFallbackExecutor(remote, local)

	resp, err := exec.ExecuteCommand(context.Background(), CommandRequest{Command: "ffmpeg"})
	require.NoError(t, err)
	assert.Equal(t, "local", resp.Stdout)
	assert.Equal(t, ModeLocal, exec.Mode())

	// subsequent calls go straight to local
	_, err = exec.ExecuteCommand(context.Background(), CommandRequest{Command: "ffmpeg"})
	require.NoError(t, err)
	assert.Len(t, remote.ExecutedCommands, 1)
	assert.Len(t, local.ExecutedCommands, 2)
}

func TestFallbackExecutor_CommandErrorDoesNotFallBack(t *testing.T) {
	remote := &FakeExecutor{
		ModeToReport:     ModeRemote,
		ResponseToReturn: CommandResponse{Success: false, ExitCode: 1},
		ErrorToReturn:    errors.New("dependency service returned error (HTTP 500)"),
	}
	local := &FakeExecutor{ResponseToReturn: CommandResponse{Success: true}}
	exec := newFallbackExecutor(remote, local)

	_, err := exec.ExecuteCommand(context.Background(), CommandRequest{Command: "ffmpeg"})
	assert.Error(t, err)
	assert.Empty(t, local.ExecutedCommands)
	assert.Equal(t, ModeRemote, exec.Mode())
}

func TestFallbackExecutor_HealthCheckSelectsMode(t *testing.T) {
	remote := &FakeExecutor{ModeToReport: ModeRemote, HealthErr: errors.New("unreachable")}
	local := &FakeExecutor{}
	exec := newFallbackExecutor(remote, local)

	require.NoError(t, exec.HealthCheck(context.Background()))
	assert.Equal(t, ModeLocal, exec.Mode())

	remote.HealthErr = nil
	require.NoError(t, exec.HealthCheck(context.Background()))
	assert.Equal(t, ModeRemote, exec.Mode())

	remote.HealthErr = errors.New("down")
	local.HealthErr = errors.New("no ffmpeg")
	assert.Error(t, exec.HealthCheck(context.Background()))
}
