package folderscan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeSized creates a sparse file of the given size in dir.
func writeSized(t *testing.T, dir, name string, size int64) {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", name, err)
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		t.Fatalf("sizing %s: %v", name, err)
	}
}

func TestClassifyFileCascade(t *testing.T) {
	tests := []struct {
		name           string
		size           int64
		wantType       FileType
		wantConfidence float64
		wantDependency bool
	}{
		{"run.bat", 100, TypeScript, 0.9, false},
		{"deploy.ps1", 100, TypeScript, 0.9, false},
		{"settings.ini", 100, TypeConfig, 0.9, false},
		{"app.config", 100, TypeConfig, 0.9, false},
		{"extras.zip", 100, TypeArchive, 0.9, false},
		{"hasp_drivers.zip", 100, TypeLicense, 0.9, false},
		{"app.msi", 100, TypeInstaller, 1.0, false},
		{"setup_big.exe", 2_000_000, TypeInstaller, 0.8, false},
		{"setup_small.exe", 500_000, TypeExecutable, 0.5, false},
		{"firebird25.exe", 8_000_000, TypeInstaller, 0.85, true},
		{"getip.exe", 40_000, TypeExecutable, 0.7, false},
		{"viewer.exe", 10_000_000, TypeExecutable, 0.6, false},
		{"monolith.exe", 60_000_000, TypeInstaller, 0.75, false},
		{"tiny.exe", 100_000, TypeExecutable, 0.5, false},
		{"readme.txt", 100, TypeUnknown, 0.5, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyFile(tc.name, tc.name, tc.size)
			if got.Type != tc.wantType {
				t.Errorf("type = %q, want %q", got.Type, tc.wantType)
			}
			if got.Confidence != tc.wantConfidence {
				t.Errorf("confidence = %v, want %v", got.Confidence, tc.wantConfidence)
			}
			if got.IsDependency != tc.wantDependency {
				t.Errorf("is_dependency = %v, want %v", got.IsDependency, tc.wantDependency)
			}
			if got.Confidence < 0.0 || got.Confidence > 1.0 {
				t.Errorf("confidence %v outside [0,1]", got.Confidence)
			}
		})
	}
}

func TestMainInstallerBySize(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, dir, "a.msi", 10_000_000)
	writeSized(t, dir, "b.msi", 2_000_000)
	writeSized(t, dir, "c.msi", 500_000)

	result, err := AnalyzeFolder(dir)
	if err != nil {
		t.Fatalf("AnalyzeFolder failed: %v", err)
	}
	if result.MainInstaller == nil {
		t.Fatal("expected a main installer")
	}
	if result.MainInstaller.Name != "a.msi" {
		t.Errorf("main installer = %q, want a.msi", result.MainInstaller.Name)
	}
	// Both remaining installers are below 30% of the main installer's size.
	if len(result.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(result.Dependencies))
	}
	for _, dep := range result.Dependencies {
		if dep.Confidence != 0.7 {
			t.Errorf("size-based dependency %s confidence = %v, want 0.7", dep.Name, dep.Confidence)
		}
	}
}

func TestSingleMsiIsMainInstaller(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, dir, "product.msi", 3_000_000)

	result, err := AnalyzeFolder(dir)
	if err != nil {
		t.Fatalf("AnalyzeFolder failed: %v", err)
	}
	if result.MainInstaller == nil {
		t.Fatal("expected a main installer")
	}
	if result.MainInstaller.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", result.MainInstaller.Confidence)
	}
	if len(result.Dependencies) != 0 {
		t.Errorf("expected no dependencies, got %d", len(result.Dependencies))
	}
}

func TestNameBoostCapped(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, dir, "setup.msi", 5_000_000)

	result, err := AnalyzeFolder(dir)
	if err != nil {
		t.Fatalf("AnalyzeFolder failed: %v", err)
	}
	if got := result.MainInstaller.Confidence; got != 1.0 {
		t.Errorf("boosted confidence = %v, want capped at 1.0", got)
	}
}

func TestNoMainInstallerLeavesDependenciesEmpty(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, dir, "firebird.exe", 8_000_000)

	result, err := AnalyzeFolder(dir)
	if err != nil {
		t.Fatalf("AnalyzeFolder failed: %v", err)
	}
	// firebird.exe classifies as a dependency installer, and as the only
	// installer it becomes the main candidate, so there is nothing left.
	if result.MainInstaller == nil {
		t.Fatal("expected the sole installer to be selected as main")
	}
	if len(result.Dependencies) != 0 {
		t.Errorf("expected no dependencies, got %d", len(result.Dependencies))
	}

	empty := t.TempDir()
	writeSized(t, empty, "notes.txt", 100)
	result, err = AnalyzeFolder(empty)
	if err != nil {
		t.Fatalf("AnalyzeFolder failed: %v", err)
	}
	if result.MainInstaller != nil {
		t.Error("expected no main installer")
	}
	if len(result.Dependencies) != 0 {
		t.Errorf("expected no dependencies, got %d", len(result.Dependencies))
	}
	if !containsString(result.Warnings, "No main installer") {
		t.Errorf("missing no-main warning: %v", result.Warnings)
	}
}

func TestHiddenFilesSkipped(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, dir, ".DS_Store", 100)
	writeSized(t, dir, "Thumbs.db", 100)
	writeSized(t, dir, "app.msi", 2_000_000)

	result, err := AnalyzeFolder(dir)
	if err != nil {
		t.Fatalf("AnalyzeFolder failed: %v", err)
	}
	total := len(result.Dependencies) + len(result.StandaloneExecutables) +
		len(result.ConfigFiles) + len(result.Scripts) + len(result.Archives) +
		len(result.LicenseFiles) + len(result.UnknownFiles)
	if result.MainInstaller == nil || total != 0 {
		t.Errorf("hidden files leaked into result: main=%v extra=%d", result.MainInstaller, total)
	}
}

func TestOverallConfidenceAndWarnings(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, dir, "installer.msi", 50_000_000)
	writeSized(t, dir, "firebird.exe", 8_000_000)
	writeSized(t, dir, "oracle_client.exe", 9_000_000)
	writeSized(t, dir, "viewer.exe", 10_000_000)
	writeSized(t, dir, "config.ini", 200)
	writeSized(t, dir, "post.bat", 100)

	result, err := AnalyzeFolder(dir)
	if err != nil {
		t.Fatalf("AnalyzeFolder failed: %v", err)
	}

	// main 1.0 (boosted, capped) + two 0.85 dependencies + one 0.65 standalone
	want := (1.0 + 0.85 + 0.85 + 0.65) / 4
	if diff := result.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", result.Confidence, want)
	}
	if result.Confidence < 0.0 || result.Confidence > 1.0 {
		t.Errorf("confidence %v outside [0,1]", result.Confidence)
	}

	if !containsString(result.Warnings, "standalone executable") {
		t.Errorf("missing standalone warning: %v", result.Warnings)
	}
	if !containsString(result.Warnings, "Verify installation order") {
		t.Errorf("missing ordering warning: %v", result.Warnings)
	}
	if !containsString(result.Suggestions, "Test silent install arguments") {
		t.Errorf("missing main-installer suggestion: %v", result.Suggestions)
	}
	if !containsString(result.Suggestions, "config file") {
		t.Errorf("missing config suggestion: %v", result.Suggestions)
	}
}

func TestGenerateDraft(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, dir, "installer.msi", 50_000_000)
	writeSized(t, dir, "firebird.exe", 8_000_000)
	writeSized(t, dir, "viewer.exe", 10_000_000)
	writeSized(t, dir, "settings.ini", 200)

	result, err := AnalyzeFolder(dir)
	if err != nil {
		t.Fatalf("AnalyzeFolder failed: %v", err)
	}
	draft := GenerateDraft(result, "Test App")

	for _, want := range []string{
		`name: "Test App"`,
		"# TODO: Update version",
		"installers:",
		`- name: "firebird.exe"`,
		`- name: "installer.msi"`,
		`depends_on: ["firebird.exe"]`,
		"post_install:",
		"file_replacements:",
		`- source: "viewer.exe"`,
		"file_copies:",
		`- source: "settings.ini"`,
	} {
		if !strings.Contains(draft, want) {
			t.Errorf("draft missing %q:\n%s", want, draft)
		}
	}

	// Dependencies come before the main installer.
	if strings.Index(draft, "firebird.exe") > strings.Index(draft, "installer.msi") {
		t.Error("dependency should precede main installer in draft")
	}
}

func containsString(list []string, substr string) bool {
	for _, s := range list {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
