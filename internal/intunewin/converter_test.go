package intunewin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConverterMissingTool(t *testing.T) {
	_, err := NewConverter(filepath.Join(t.TempDir(), "nope.exe"))
	if err == nil {
		t.Fatal("expected an error for a missing tool path")
	}
	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConversionError, got %T: %v", err, err)
	}
}

func TestNewConverterExplicitPath(t *testing.T) {
	tool := filepath.Join(t.TempDir(), "IntuneWinAppUtil.exe")
	if err := os.WriteFile(tool, []byte("stub"), 0755); err != nil {
		t.Fatal(err)
	}

	c, err := NewConverter(tool)
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}
	if c.ToolPath != tool {
		t.Errorf("tool path = %q, want %q", c.ToolPath, tool)
	}
	if c.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.Timeout, DefaultTimeout)
	}
}

func TestConvertRejectsMissingInputs(t *testing.T) {
	tool := filepath.Join(t.TempDir(), "IntuneWinAppUtil.exe")
	if err := os.WriteFile(tool, []byte("stub"), 0755); err != nil {
		t.Fatal(err)
	}
	c, err := NewConverter(tool)
	if err != nil {
		t.Fatal(err)
	}

	src := t.TempDir()
	tests := []struct {
		name string
		req  Request
	}{
		{"missing source folder", Request{SourceFolder: filepath.Join(src, "gone"), SetupFile: "setup.exe", OutputFolder: t.TempDir()}},
		{"missing setup file", Request{SourceFolder: src, SetupFile: "setup.exe", OutputFolder: t.TempDir()}},
		{"missing catalog folder", Request{SourceFolder: src, SetupFile: "setup.exe", OutputFolder: t.TempDir(), CatalogFolder: filepath.Join(src, "cat")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Convert(context.Background(), tc.req)
			var cerr *ConversionError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *ConversionError, got %T: %v", err, err)
			}
		})
	}
}

func TestConvertFileRejectsMissingSource(t *testing.T) {
	tool := filepath.Join(t.TempDir(), "IntuneWinAppUtil.exe")
	if err := os.WriteFile(tool, []byte("stub"), 0755); err != nil {
		t.Fatal(err)
	}
	c, err := NewConverter(tool)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.ConvertFile(context.Background(), filepath.Join(t.TempDir(), "missing.exe"), t.TempDir(), true)
	var cerr *ConversionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConversionError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "missing.exe") {
		t.Errorf("error should name the missing file: %v", err)
	}
}

func TestFindIntunewinFile(t *testing.T) {
	dir := t.TempDir()

	if got := findIntunewinFile(dir, "setup.exe"); got != "" {
		t.Errorf("empty folder should yield no artifact, got %q", got)
	}

	other := filepath.Join(dir, "renamed.intunewin")
	if err := os.WriteFile(other, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if got := findIntunewinFile(dir, "setup.exe"); got != other {
		t.Errorf("fallback scan = %q, want %q", got, other)
	}

	expected := filepath.Join(dir, "setup.intunewin")
	if err := os.WriteFile(expected, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if got := findIntunewinFile(dir, "setup.exe"); got != expected {
		t.Errorf("expected name should win: got %q, want %q", got, expected)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "dst.bin")
	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Errorf("copied content = %q, err=%v", data, err)
	}
}
