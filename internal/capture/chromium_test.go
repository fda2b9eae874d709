package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCaptureRequiresURLAndOutput(t *testing.T) {
	if err := CaptureWidgetPNG(context.Background(), Options{OutputPath: "x.png"}); err == nil {
		t.Fatal("expected error for missing URL")
	}
	if err := CaptureWidgetPNG(context.Background(), Options{URL: "http://127.0.0.1/widget"}); err == nil {
		t.Fatal("expected error for missing output path")
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{URL: "u", OutputPath: "p"}
	if err := o.normalize(); err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout <= 0 {
		t.Fatalf("defaults not applied: %+v", o)
	}
}

func TestAuthorizationHeader(t *testing.T) {
	if h := (Options{}).AuthorizationHeader(); h != "" {
		t.Fatalf("no credentials: %q", h)
	}
	if h := (Options{Username: "me"}).AuthorizationHeader(); h != "" {
		t.Fatalf("username only: %q", h)
	}
	// base64("me:secret")
	if h := (Options{Username: "me", Password: "secret"}).AuthorizationHeader(); h != "Basic bWU6c2VjcmV0" {
		t.Fatalf("header = %q", h)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "preview.png")
	if err := writeFileAtomic(path, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := writeFileAtomic(path, []byte("two")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "two" {
		t.Fatalf("read %q, %v", got, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
