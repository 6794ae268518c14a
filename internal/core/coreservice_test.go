package core

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/jo-hoe/ransomware-detector/internal/backend/cache"
	"github.com/jo-hoe/ransomware-detector/internal/datauri"
	"github.com/jo-hoe/ransomware-detector/internal/inference"
	"github.com/jo-hoe/ransomware-detector/internal/upload"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCoreService(t *testing.T, predictor inference.Predictor, cacheType string) *CoreService {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Cache.Type = cacheType
	svc := NewCoreServiceWithPredictor(cfg, predictor)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func exeUpload(name string, content []byte) UploadedFile {
	return UploadedFile{
		Name:    name,
		Type:    upload.MimeExecutable,
		Size:    int64(len(content)),
		Content: datauri.Encode(upload.MimeExecutable, content),
	}
}

func TestScan_SubmitsReconstructedFileOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, size := range []int{0, 10, 4096, upload.DefaultMaxSizeBytes} {
		predictor := inference.NewMockPredictor(`{"classification": "legitimate"}`)
		svc := newTestCoreService(t, predictor, cache.TypeNone)

		content := make([]byte, size)
		rng.Read(content)
		if _, err := svc.Scan(context.Background(), exeUpload("sample.exe", content)); err != nil {
			t.Fatalf("size %d: Scan error: %v", size, err)
		}

		calls := predictor.Calls()
		if len(calls) != 1 {
			t.Fatalf("size %d: expected exactly one prediction call, got %d", size, len(calls))
		}
		if calls[0].Name != "sample.exe" {
			t.Errorf("size %d: expected name sample.exe, got %q", size, calls[0].Name)
		}
		if calls[0].Type != upload.MimeExecutable {
			t.Errorf("size %d: expected type %s, got %q", size, upload.MimeExecutable, calls[0].Type)
		}
		if !bytes.Equal(calls[0].Content, content) {
			t.Errorf("size %d: submitted bytes differ from original", size)
		}
	}
}

func TestScan_Legitimate(t *testing.T) {
	predictor := inference.NewMockPredictor(`{"classification": "legitimate", "size": 10}`)
	svc := newTestCoreService(t, predictor, cache.TypeNone)

	outcome, err := svc.Scan(context.Background(), exeUpload("dummy.exe", make([]byte, 10)))
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if outcome.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", outcome.Status, outcome.Message)
	}
	if outcome.Result != "legitimate" {
		t.Errorf("expected result 'legitimate', got %q", outcome.Result)
	}
	if outcome.Prediction.Details["classification"] != "legitimate" {
		t.Errorf("expected details to keep the response mapping, got %v", outcome.Prediction.Details)
	}
	if outcome.File.Size != 10 || outcome.File.Name != "dummy.exe" {
		t.Errorf("unexpected file info %+v", outcome.File)
	}
	if outcome.ID == "" {
		t.Error("expected outcome id to be set")
	}
}

func TestScan_CustomLabelStillShowsLegitimate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Inference.LegitimateLabel = "benign"
	predictor := inference.NewMockPredictor(`{"classification": "benign"}`)
	svc := NewCoreServiceWithPredictor(cfg, predictor)
	t.Cleanup(func() { _ = svc.Close() })

	outcome, err := svc.Scan(context.Background(), exeUpload("dummy.exe", []byte("MZ")))
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if !outcome.Prediction.Legitimate {
		t.Fatal("expected the configured label to match")
	}
	if outcome.Result != LegitimateMessage {
		t.Errorf("expected result %q, got %q", LegitimateMessage, outcome.Result)
	}
}

func TestScan_Ransomware(t *testing.T) {
	for _, classification := range []string{`"ransomware"`, `"Legitimate"`, `""`, `1`} {
		predictor := inference.NewMockPredictor(`{"classification": ` + classification + `}`)
		svc := newTestCoreService(t, predictor, cache.TypeNone)

		outcome, err := svc.Scan(context.Background(), exeUpload("dummy.exe", make([]byte, 10)))
		if err != nil {
			t.Fatalf("Scan error: %v", err)
		}
		if outcome.Result != RansomwareMessage {
			t.Errorf("classification %s: expected %q, got %q", classification, RansomwareMessage, outcome.Result)
		}
	}
}

func TestScan_ServiceError(t *testing.T) {
	predictor := inference.NewMockPredictor(`"Error: model unavailable"`)
	svc := newTestCoreService(t, predictor, cache.TypeMemory)

	outcome, err := svc.Scan(context.Background(), exeUpload("dummy.exe", make([]byte, 10)))
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if outcome.Status != StatusServiceError {
		t.Fatalf("expected service_error, got %s", outcome.Status)
	}
	if outcome.Message != "Error: model unavailable" {
		t.Errorf("unexpected message %q", outcome.Message)
	}
	if outcome.Result != "" || outcome.Prediction != nil {
		t.Errorf("expected no verdict on error, got %q %+v", outcome.Result, outcome.Prediction)
	}

	// errors are not cached
	if _, err := svc.Scan(context.Background(), exeUpload("dummy.exe", make([]byte, 10))); err != nil {
		t.Fatalf("second Scan error: %v", err)
	}
	if calls := len(predictor.Calls()); calls != 2 {
		t.Errorf("expected failed scans to be retried remotely, got %d calls", calls)
	}
}

func TestScan_Unavailable(t *testing.T) {
	predictor := inference.NewMockPredictorWithError(&inference.UnavailableError{Err: errors.New("connection refused")})
	svc := newTestCoreService(t, predictor, cache.TypeNone)

	outcome, err := svc.Scan(context.Background(), exeUpload("dummy.exe", []byte("MZ")))
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if outcome.Status != StatusUnavailable {
		t.Fatalf("expected unavailable, got %s", outcome.Status)
	}
	if got := testutil.ToFloat64(svc.Metrics().InFlight); got != 0 {
		t.Errorf("expected in-flight gauge to be released, got %v", got)
	}
	if got := testutil.ToFloat64(svc.Metrics().Scans.WithLabelValues(string(StatusUnavailable))); got != 1 {
		t.Errorf("expected one unavailable scan to be counted, got %v", got)
	}
}

func TestScan_CacheHitSkipsRemoteCall(t *testing.T) {
	predictor := inference.NewMockPredictor(`{"classification": "ransomware", "family": "locky"}`)
	svc := newTestCoreService(t, predictor, cache.TypeSQLite)
	ctx := context.Background()

	first, err := svc.Scan(ctx, exeUpload("a.exe", []byte("MZ-payload")))
	if err != nil {
		t.Fatalf("first Scan error: %v", err)
	}
	second, err := svc.Scan(ctx, exeUpload("renamed.exe", []byte("MZ-payload")))
	if err != nil {
		t.Fatalf("second Scan error: %v", err)
	}

	if calls := len(predictor.Calls()); calls != 1 {
		t.Fatalf("expected one remote call, got %d", calls)
	}
	if first.Cached || !second.Cached {
		t.Errorf("expected only the second scan to be cached, got %v %v", first.Cached, second.Cached)
	}
	if second.Result != RansomwareMessage || second.Prediction.Details["family"] != "locky" {
		t.Errorf("expected cached verdict to match, got %q %v", second.Result, second.Prediction.Details)
	}
	if second.File.Name != "renamed.exe" {
		t.Errorf("expected file info of the current upload, got %q", second.File.Name)
	}
}

func TestScan_InvalidInput(t *testing.T) {
	predictor := inference.NewMockPredictor(`{"classification": "legitimate"}`)
	svc := newTestCoreService(t, predictor, cache.TypeNone)
	ctx := context.Background()

	tests := []struct {
		name    string
		file    UploadedFile
		wantErr error
	}{
		{
			name:    "not a data uri",
			file:    UploadedFile{Name: "a.exe", Content: "TVo="},
			wantErr: datauri.ErrInvalidDataURI,
		},
		{
			name:    "too large",
			file:    exeUpload("big.exe", make([]byte, upload.DefaultMaxSizeBytes+1)),
			wantErr: upload.ErrFileTooLarge,
		},
		{
			name:    "wrong type",
			file:    UploadedFile{Name: "notes.txt", Type: "text/plain", Content: datauri.Encode("text/plain", []byte("hi"))},
			wantErr: upload.ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := svc.Scan(ctx, tt.file)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if outcome != nil {
				t.Errorf("expected no outcome for invalid input")
			}
		})
	}
	if calls := len(predictor.Calls()); calls != 0 {
		t.Errorf("expected invalid input never to reach the service, got %d calls", calls)
	}
}

func TestScan_TypeFromDataURI(t *testing.T) {
	predictor := inference.NewMockPredictor(`{"classification": "legitimate"}`)
	svc := newTestCoreService(t, predictor, cache.TypeNone)

	file := UploadedFile{Name: "tool", Content: datauri.Encode(upload.MimeExecutable, []byte("MZ"))}
	outcome, err := svc.Scan(context.Background(), file)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if outcome.File.Type != upload.MimeExecutable {
		t.Errorf("expected type from data uri header, got %q", outcome.File.Type)
	}
}

func TestScan_DefaultConfigCallsServiceForEverySubmission(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `port: 8080`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	predictor := inference.NewMockPredictor(`{"classification": "legitimate"}`)
	svc := NewCoreServiceWithPredictor(config, predictor)
	t.Cleanup(func() { _ = svc.Close() })

	for i := 1; i <= 2; i++ {
		outcome, err := svc.Scan(context.Background(), exeUpload("a.exe", []byte("MZ-payload")))
		if err != nil {
			t.Fatalf("submission %d: Scan error: %v", i, err)
		}
		if outcome.Cached {
			t.Errorf("submission %d: expected no cached verdict with the default config", i)
		}
	}

	if calls := len(predictor.Calls()); calls != 2 {
		t.Fatalf("expected one prediction call per submission, got %d for 2 submissions", calls)
	}
}
