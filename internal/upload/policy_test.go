package upload

import (
	"errors"
	"testing"
)

func TestDefaultPolicy_Valid(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("expected default policy to be valid, got %v", err)
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{name: "zero files", policy: Policy{MaxFiles: 0, MaxSizeBytes: 1, Accept: map[string][]string{"a/b": {".x"}}}},
		{name: "zero size", policy: Policy{MaxFiles: 1, MaxSizeBytes: 0, Accept: map[string][]string{"a/b": {".x"}}}},
		{name: "no accept", policy: Policy{MaxFiles: 1, MaxSizeBytes: 1}},
		{name: "empty mime", policy: Policy{MaxFiles: 1, MaxSizeBytes: 1, Accept: map[string][]string{"": {".x"}}}},
		{name: "extension without dot", policy: Policy{MaxFiles: 1, MaxSizeBytes: 1, Accept: map[string][]string{"a/b": {"exe"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.policy.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestPolicy_CheckCount(t *testing.T) {
	p := DefaultPolicy()

	if err := p.CheckCount(0); !errors.Is(err, ErrNoFile) {
		t.Errorf("expected ErrNoFile for 0 files, got %v", err)
	}
	if err := p.CheckCount(1); err != nil {
		t.Errorf("expected 1 file to be accepted, got %v", err)
	}
	if err := p.CheckCount(2); !errors.Is(err, ErrTooManyFiles) {
		t.Errorf("expected ErrTooManyFiles for 2 files, got %v", err)
	}
}

func TestPolicy_CheckFile(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		fileName string
		mimeType string
		size     int64
		wantErr  error
	}{
		{name: "executable", fileName: "setup.exe", mimeType: MimeExecutable, size: 10},
		{name: "upper case extension", fileName: "SETUP.EXE", mimeType: "application/octet-stream", size: 10},
		{name: "extension without type", fileName: "setup.exe", mimeType: "", size: 10},
		{name: "type without extension", fileName: "setup", mimeType: MimeExecutable, size: 10},
		{name: "empty file", fileName: "empty.exe", mimeType: MimeExecutable, size: 0},
		{name: "exactly at limit", fileName: "big.exe", mimeType: MimeExecutable, size: DefaultMaxSizeBytes},
		{name: "over limit", fileName: "big.exe", mimeType: MimeExecutable, size: DefaultMaxSizeBytes + 1, wantErr: ErrFileTooLarge},
		{name: "text file", fileName: "notes.txt", mimeType: "text/plain", size: 10, wantErr: ErrUnsupportedType},
		{name: "disguised extension", fileName: "setup.exe.txt", mimeType: "text/plain", size: 10, wantErr: ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.CheckFile(tt.fileName, tt.mimeType, tt.size)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected file to be accepted, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPolicy_AcceptAttribute(t *testing.T) {
	p := Policy{
		MaxFiles:     1,
		MaxSizeBytes: 1,
		Accept: map[string][]string{
			"application/x-msdownload":    {".exe", ".EXE"},
			"application/x-msdos-program": {".com", ".exe"},
		},
	}

	got := p.AcceptAttribute()
	want := "application/x-msdos-program,application/x-msdownload,.com,.exe"
	if got != want {
		t.Fatalf("AcceptAttribute() = %q, want %q", got, want)
	}
}
