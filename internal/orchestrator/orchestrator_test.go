package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/intunepack/intunepack/internal/analyzer"
	"github.com/intunepack/intunepack/internal/intunewin"
)

type fakeConverter struct {
	failOn map[string]bool // base names that fail conversion
	calls  []string
}

func (f *fakeConverter) ConvertFile(ctx context.Context, sourceFile, outputFolder string, quiet bool) (*intunewin.Result, error) {
	base := filepath.Base(sourceFile)
	f.calls = append(f.calls, base)
	if f.failOn[base] {
		return nil, &intunewin.ConversionError{Message: "tool exited with an error", Stderr: "boom"}
	}
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".intunewin"
	return &intunewin.Result{
		OutputFile:   filepath.Join(outputFolder, name),
		OutputFolder: outputFolder,
	}, nil
}

func (f *fakeConverter) Convert(ctx context.Context, req intunewin.Request) (*intunewin.Result, error) {
	return f.ConvertFile(ctx, filepath.Join(req.SourceFolder, req.SetupFile), req.OutputFolder, req.Quiet)
}

func (f *fakeConverter) ValidateTool(ctx context.Context) bool { return true }

type fakeProber struct {
	err error
}

func (f *fakeProber) Analyze(path string) (*analyzer.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &analyzer.Analysis{
		FilePath:      path,
		FileName:      filepath.Base(path),
		InstallerType: "NSIS",
	}, nil
}

// fiveJobConfig builds a batch of five file jobs; job 3's source file does
// not exist on disk.
func fiveJobConfig(t *testing.T, stopOnError bool) *BatchConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := &BatchConfig{
		DefaultOutputFolder: filepath.Join(dir, "out"),
		StopOnError:         stopOnError,
	}
	for i := 1; i <= 5; i++ {
		name := "app" + string(rune('0'+i)) + ".exe"
		path := filepath.Join(dir, name)
		if i != 3 {
			if err := os.WriteFile(path, []byte("exe"), 0644); err != nil {
				t.Fatal(err)
			}
		}
		cfg.Jobs = append(cfg.Jobs, Job{SourceFile: path, Analyze: true})
	}
	return cfg
}

func newTestOrchestrator(conv *fakeConverter) *Orchestrator {
	return &Orchestrator{Converter: conv, Prober: &fakeProber{}}
}

func TestBatchContinuesAfterFailure(t *testing.T) {
	cfg := fiveJobConfig(t, false)
	o := newTestOrchestrator(&fakeConverter{})

	summary := o.RunBatch(context.Background(), cfg)

	if summary.Total != 5 || summary.Successful != 4 || summary.Failed != 1 {
		t.Errorf("summary = total %d, successful %d, failed %d; want 5/4/1",
			summary.Total, summary.Successful, summary.Failed)
	}
	if len(summary.Applications) != 5 {
		t.Fatalf("expected 5 result entries, got %d", len(summary.Applications))
	}
	for i, record := range summary.Applications {
		if record.Index != i+1 {
			t.Errorf("entry %d has index %d", i, record.Index)
		}
	}

	third := summary.Applications[2]
	if third.Status != StatusFailed {
		t.Errorf("job 3 status = %q, want failed", third.Status)
	}
	if !strings.Contains(third.Error, "missing input") {
		t.Errorf("job 3 error should report missing input: %q", third.Error)
	}
}

func TestBatchStopOnError(t *testing.T) {
	cfg := fiveJobConfig(t, true)
	o := newTestOrchestrator(&fakeConverter{})

	summary := o.RunBatch(context.Background(), cfg)

	if len(summary.Applications) != 3 {
		t.Fatalf("expected 3 attempted entries, got %d", len(summary.Applications))
	}
	if summary.Successful+summary.Failed != 3 {
		t.Errorf("successful+failed = %d, want 3", summary.Successful+summary.Failed)
	}
	if summary.Total != 5 {
		t.Errorf("total = %d, want 5", summary.Total)
	}
}

func TestSkippedItemsCountInNeitherBucket(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.exe")
	if err := os.WriteFile(good, []byte("exe"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &BatchConfig{
		Jobs: []Job{
			{},                                      // no source input
			{SourceFile: good},                      // no output folder anywhere
			{SourceFile: good, OutputFolder: dir},   // fine
		},
	}
	o := newTestOrchestrator(&fakeConverter{})

	summary := o.RunBatch(context.Background(), cfg)

	if len(summary.Applications) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(summary.Applications))
	}
	if summary.Applications[0].Status != StatusSkipped || summary.Applications[1].Status != StatusSkipped {
		t.Errorf("first two entries should be skipped: %+v", summary.Applications[:2])
	}
	if summary.Successful != 1 || summary.Failed != 0 {
		t.Errorf("successful/failed = %d/%d, want 1/0 (skips not counted)",
			summary.Successful, summary.Failed)
	}
}

func TestAnalysisFailureDegradesToWarning(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.exe")
	if err := os.WriteFile(src, []byte("exe"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &BatchConfig{
		DefaultOutputFolder: dir,
		Jobs:                []Job{{SourceFile: src, Analyze: true}},
	}
	o := &Orchestrator{
		Converter: &fakeConverter{},
		Prober:    &fakeProber{err: errors.New("not a PE file")},
	}

	summary := o.RunBatch(context.Background(), cfg)

	record := summary.Applications[0]
	if record.Status != StatusSuccess {
		t.Errorf("status = %q, want success despite analysis failure", record.Status)
	}
	if !strings.Contains(record.AnalysisWarning, "not a PE") {
		t.Errorf("analysis warning not recorded: %+v", record)
	}
	if summary.Successful != 1 {
		t.Errorf("successful = %d, want 1", summary.Successful)
	}
}

func TestAnalyzeDisabledSkipsProbe(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.exe")
	if err := os.WriteFile(src, []byte("exe"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &BatchConfig{
		DefaultOutputFolder: dir,
		Jobs:                []Job{{SourceFile: src, Analyze: false}},
	}
	o := &Orchestrator{
		Converter: &fakeConverter{},
		Prober:    &fakeProber{err: errors.New("should not be called")},
	}

	summary := o.RunBatch(context.Background(), cfg)
	record := summary.Applications[0]
	if record.Status != StatusSuccess || record.AnalysisWarning != "" {
		t.Errorf("analysis ran despite analyze=false: %+v", record)
	}
}

func TestConversionErrorCaptured(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.exe")
	if err := os.WriteFile(src, []byte("exe"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &BatchConfig{
		DefaultOutputFolder: dir,
		Jobs:                []Job{{SourceFile: src, Analyze: true}},
	}
	o := newTestOrchestrator(&fakeConverter{failOn: map[string]bool{"bad.exe": true}})

	summary := o.RunBatch(context.Background(), cfg)

	record := summary.Applications[0]
	if record.Status != StatusFailed {
		t.Errorf("status = %q, want failed", record.Status)
	}
	if !strings.Contains(record.Error, "boom") {
		t.Errorf("conversion error not captured: %q", record.Error)
	}
	if record.InstallerType != "NSIS" {
		t.Errorf("analysis result lost on failure: %+v", record)
	}
}

func TestFolderJobUsesConvert(t *testing.T) {
	dir := t.TempDir()
	srcFolder := filepath.Join(dir, "pkg")
	if err := os.MkdirAll(srcFolder, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcFolder, "setup.exe"), []byte("exe"), 0644); err != nil {
		t.Fatal(err)
	}

	conv := &fakeConverter{}
	cfg := &BatchConfig{
		DefaultOutputFolder: dir,
		Jobs:                []Job{{SourceFolder: srcFolder, SetupFile: "setup.exe"}},
	}
	o := newTestOrchestrator(conv)

	summary := o.RunBatch(context.Background(), cfg)
	if summary.Successful != 1 {
		t.Fatalf("folder job failed: %+v", summary.Applications)
	}
	if len(conv.calls) != 1 || conv.calls[0] != "setup.exe" {
		t.Errorf("converter calls = %v", conv.calls)
	}
	if !strings.HasSuffix(summary.Applications[0].OutputFile, "setup.intunewin") {
		t.Errorf("output file = %q", summary.Applications[0].OutputFile)
	}
}

func TestValidateSetup(t *testing.T) {
	o := newTestOrchestrator(&fakeConverter{})
	if !o.ValidateSetup(context.Background()).ToolOK {
		t.Error("expected tool validation to pass with the fake converter")
	}
}
