package whisper_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Yuhamixli/voice-input-assistant/pkg/provider/transcribe/whisper"
)

// ---- helpers ----------------------------------------------------------------

// newMockServer creates a test server that responds to POST /inference with a
// JSON body containing the provided responseText. It increments *callCount on
// every matched request.
func newMockServer(t *testing.T, responseText string, callCount *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if callCount != nil {
			callCount.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
}

// makeSpeechSamples generates a 440 Hz sine wave of n float32 samples at
// 16 kHz with amplitude 0.3.
func makeSpeechSamples(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return samples
}

// ---- construction -----------------------------------------------------------

func TestNewServer_EmptyURL_ReturnsError(t *testing.T) {
	_, err := whisper.NewServer("")
	if err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNewServer_WithOptions_DoesNotError(t *testing.T) {
	e, err := whisper.NewServer("http://localhost:8080",
		whisper.WithModel("small"),
		whisper.WithLanguage("de"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e == nil {
		t.Fatal("expected non-nil engine")
	}
}

// ---- transcription ----------------------------------------------------------

func TestTranscribe_ReturnsServerText(t *testing.T) {
	const wantText = "hello darkness my old friend"
	srv := newMockServer(t, wantText, nil)
	defer srv.Close()

	e, _ := whisper.NewServer(srv.URL)
	got, err := e.Transcribe(context.Background(), makeSpeechSamples(16000), 16000, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != wantText {
		t.Errorf("Transcribe = %q; want %q", got, wantText)
	}
}

func TestTranscribe_TrimsWhitespace(t *testing.T) {
	srv := newMockServer(t, "  fire bolt \n", nil)
	defer srv.Close()

	e, _ := whisper.NewServer(srv.URL)
	got, err := e.Transcribe(context.Background(), makeSpeechSamples(1600), 16000, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "fire bolt" {
		t.Errorf("Transcribe = %q; want %q", got, "fire bolt")
	}
}

func TestTranscribe_EmptyUtterance_SkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := newMockServer(t, "unexpected", &calls)
	defer srv.Close()

	e, _ := whisper.NewServer(srv.URL)
	got, err := e.Transcribe(context.Background(), nil, 16000, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "" {
		t.Errorf("Transcribe = %q; want empty", got)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("server called %d time(s) for empty utterance; want 0", n)
	}
}

func TestTranscribe_UploadsValidWAV(t *testing.T) {
	var gotWAV []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotWAV, _ = io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	e, _ := whisper.NewServer(srv.URL)
	samples := makeSpeechSamples(1600)
	if _, err := e.Transcribe(context.Background(), samples, 16000, ""); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if len(gotWAV) != 44+len(samples)*2 {
		t.Fatalf("uploaded WAV is %d bytes; want %d (44-byte header + 16-bit PCM)", len(gotWAV), 44+len(samples)*2)
	}
	if string(gotWAV[0:4]) != "RIFF" || string(gotWAV[8:12]) != "WAVE" {
		t.Error("uploaded file is missing the RIFF/WAVE header")
	}
	if rate := binary.LittleEndian.Uint32(gotWAV[24:28]); rate != 16000 {
		t.Errorf("WAV sample rate = %d; want 16000", rate)
	}
	if ch := binary.LittleEndian.Uint16(gotWAV[22:24]); ch != 1 {
		t.Errorf("WAV channels = %d; want 1 (mono)", ch)
	}
}

func TestTranscribe_PerCallLanguageOverridesDefault(t *testing.T) {
	var gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		gotLang = r.FormValue("language")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	e, _ := whisper.NewServer(srv.URL, whisper.WithLanguage("en"))
	if _, err := e.Transcribe(context.Background(), makeSpeechSamples(160), 16000, "de"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gotLang != "de" {
		t.Errorf("language field = %q; want %q", gotLang, "de")
	}
}

// ---- error handling ---------------------------------------------------------

func TestTranscribe_ServerError_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, _ := whisper.NewServer(srv.URL)
	_, err := e.Transcribe(context.Background(), makeSpeechSamples(1600), 16000, "")
	if err == nil {
		t.Fatal("expected error for HTTP 500 response, got nil")
	}
}

func TestTranscribe_CancelledContext_ReturnsError(t *testing.T) {
	srv := newMockServer(t, "late", nil)
	defer srv.Close()

	e, _ := whisper.NewServer(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Transcribe(ctx, makeSpeechSamples(1600), 16000, "")
	if err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

func TestTranscribe_MalformedJSON_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	e, _ := whisper.NewServer(srv.URL)
	_, err := e.Transcribe(context.Background(), makeSpeechSamples(1600), 16000, "")
	if err == nil {
		t.Fatal("expected error for malformed JSON response, got nil")
	}
}
