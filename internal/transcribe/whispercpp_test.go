package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/runner"
)

// mustWriteFile creates parent directory and writes file content.
func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

// argValue returns the value after a flag in CLI args.
func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// hasArg reports whether a flag is present.
func hasArg(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}

// TestWhisperCPPTranscribeReadsTextOutput checks CLI args and transcript read.
func TestWhisperCPPTranscribeReadsTextOutput(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "models")
	mustWriteFile(t, filepath.Join(modelDir, "ggml-medium.bin"), "weights")
	audio := filepath.Join(root, "work", "audio.mp3")
	mustWriteFile(t, audio, "mp3")

	var gotName string
	var gotArgs []string
	run := runner.Func(func(ctx context.Context, name string, args ...string) (runner.Result, error) {
		gotName = name
		gotArgs = args
		mustWriteFile(t, argValue(args, "-of")+".txt", "  bom dia a todos \n")
		return runner.Result{}, nil
	})

	backend := NewWhisperCPPForTests(WhisperCPPConfig{BinaryPath: "whisper-custom", ModelDir: modelDir}, run, http.DefaultClient, nil)
	model, err := backend.Load(context.Background(), domain.ModelTierMedium)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	text, err := model.Transcribe(context.Background(), audio, domain.LanguagePortuguese)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "bom dia a todos" {
		t.Fatalf("text = %q", text)
	}
	if gotName != "whisper-custom" {
		t.Fatalf("binary = %q, want whisper-custom", gotName)
	}
	if argValue(gotArgs, "-m") != filepath.Join(modelDir, "ggml-medium.bin") {
		t.Fatalf("-m = %q", argValue(gotArgs, "-m"))
	}
	if argValue(gotArgs, "-f") != audio {
		t.Fatalf("-f = %q", argValue(gotArgs, "-f"))
	}
	if argValue(gotArgs, "-l") != "pt" {
		t.Fatalf("-l = %q, want pt", argValue(gotArgs, "-l"))
	}
	if !hasArg(gotArgs, "-otxt") || !hasArg(gotArgs, "-np") {
		t.Fatalf("args = %v, want -otxt and -np", gotArgs)
	}
}

// TestWhisperCPPTranscribeFailureUsesStderr checks the failure detail.
func TestWhisperCPPTranscribeFailureUsesStderr(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "ggml-tiny.bin"), "weights")

	run := runner.Func(func(ctx context.Context, name string, args ...string) (runner.Result, error) {
		return runner.Result{ExitCode: 2, Stderr: "segmentation fault in encoder\n"}, errors.New("exit status 2")
	})

	backend := NewWhisperCPPForTests(WhisperCPPConfig{ModelDir: root}, run, http.DefaultClient, nil)
	model, err := backend.Load(context.Background(), domain.ModelTierTiny)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err = model.Transcribe(context.Background(), filepath.Join(root, "audio.mp3"), domain.LanguageEnglish)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "whisper.cpp failed: segmentation fault in encoder") {
		t.Fatalf("error = %v", err)
	}
}

// TestWhisperCPPTranscribeUnreadableAudioNamesVersion checks the hint for builds without mp3 decoding.
func TestWhisperCPPTranscribeUnreadableAudioNamesVersion(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "ggml-tiny.bin"), "weights")

	run := runner.Func(func(ctx context.Context, name string, args ...string) (runner.Result, error) {
		return runner.Result{ExitCode: 2, Exited: true, Stderr: "error: failed to read WAV file '" + argValue(args, "-f") + "'\n"}, errors.New("exit status 2")
	})

	backend := NewWhisperCPPForTests(WhisperCPPConfig{ModelDir: root}, run, http.DefaultClient, nil)
	model, err := backend.Load(context.Background(), domain.ModelTierTiny)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err = model.Transcribe(context.Background(), filepath.Join(root, "audio.mp3"), domain.LanguageEnglish)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "could not read audio.mp3") || !strings.Contains(msg, "whisper.cpp "+minWhisperCPPVersion+" or newer") {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(msg, "failed to read WAV file") {
		t.Fatalf("error lost stderr detail: %v", err)
	}
}

// TestWhisperCPPLoadMissingModelWithoutDownload checks the disabled download path.
func TestWhisperCPPLoadMissingModelWithoutDownload(t *testing.T) {
	backend := NewWhisperCPPForTests(WhisperCPPConfig{ModelDir: t.TempDir()}, runner.Func(nil), http.DefaultClient, nil)

	_, err := backend.Load(context.Background(), domain.ModelTierSmall)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "ggml-small.bin") {
		t.Fatalf("error = %v, want model file name", err)
	}
}

// TestWhisperCPPLoadDownloadsMissingModel checks auto-download into the model dir.
func TestWhisperCPPLoadDownloadsMissingModel(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/ggml-base.bin") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("weights"))
	}))
	defer server.Close()

	client := server.Client()
	client.Transport = rewriteTransport{target: server.URL, base: http.DefaultTransport}

	modelDir := filepath.Join(t.TempDir(), "models")
	backend := NewWhisperCPPForTests(WhisperCPPConfig{ModelDir: modelDir, AutoDownload: true}, runner.Func(nil), client, nil)

	if _, err := backend.Load(context.Background(), domain.ModelTierBase); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	content, err := os.ReadFile(filepath.Join(modelDir, "ggml-base.bin"))
	if err != nil {
		t.Fatalf("read downloaded model: %v", err)
	}
	if string(content) != "weights" {
		t.Fatalf("content = %q", string(content))
	}
	if _, err := os.Stat(filepath.Join(modelDir, "ggml-base.bin.download")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file should be gone, stat err = %v", err)
	}
	if requests.Load() != 1 {
		t.Fatalf("requests = %d, want 1", requests.Load())
	}
}

// TestWhisperCPPLoadDownloadFailure checks HTTP errors leave no model behind.
func TestWhisperCPPLoadDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client := server.Client()
	client.Transport = rewriteTransport{target: server.URL, base: http.DefaultTransport}

	modelDir := t.TempDir()
	backend := NewWhisperCPPForTests(WhisperCPPConfig{ModelDir: modelDir, AutoDownload: true}, runner.Func(nil), client, nil)

	if _, err := backend.Load(context.Background(), domain.ModelTierTiny); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Join(modelDir, "ggml-tiny.bin")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("model should not exist, stat err = %v", err)
	}
}

// TestBuildWhisperArgs checks the exact invocation order.
func TestBuildWhisperArgs(t *testing.T) {
	args := buildWhisperArgs("/m/ggml-small.bin", "/w/audio.mp3", "/w/audio", domain.LanguageSpanish)
	want := []string{"-m", "/m/ggml-small.bin", "-f", "/w/audio.mp3", "-l", "es", "-otxt", "-of", "/w/audio", "-np"}

	if len(args) != len(want) {
		t.Fatalf("args len = %d, want %d", len(args), len(want))
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

// TestCatalogMarksDownloadedModels checks local model discovery.
func TestCatalogMarksDownloadedModels(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "ggml-large-v3.bin"), "weights")

	models := Catalog(dir)
	if len(models) != len(domain.ModelTiers()) {
		t.Fatalf("models = %d, want one per tier", len(models))
	}
	for _, model := range models {
		want := model.Tier == domain.ModelTierLarge
		if model.Downloaded != want {
			t.Fatalf("%s downloaded = %v, want %v", model.Tier, model.Downloaded, want)
		}
	}
	if whisperModelCatalog[4].Downloaded {
		t.Fatal("catalog must not be mutated")
	}
}

// TestModelForCoversEveryTier checks each tier has a preset.
func TestModelForCoversEveryTier(t *testing.T) {
	for _, tier := range domain.ModelTiers() {
		model, ok := ModelFor(tier)
		if !ok {
			t.Fatalf("missing preset for %s", tier)
		}
		if !strings.HasPrefix(model.FileName, "ggml-") {
			t.Fatalf("%s file name = %q", tier, model.FileName)
		}
	}
}

// rewriteTransport sends every request to the test server, keeping the path.
type rewriteTransport struct {
	target string
	base   http.RoundTripper
}

// RoundTrip rewrites scheme and host.
func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = "http"
	clone.URL.Host = strings.TrimPrefix(rt.target, "http://")
	clone.Host = clone.URL.Host
	return rt.base.RoundTrip(clone)
}
