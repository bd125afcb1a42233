package analyzer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeBytes(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectInstallerType(t *testing.T) {
	padding := make([]byte, 512)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"nsis", append([]byte("MZ garbage Nullsoft padding"), padding...), "NSIS"},
		{"inno", append([]byte("junk Inno Setup junk"), padding...), "Inno Setup"},
		{"wise", append([]byte("xx Wise Installation xx"), padding...), "Wise Installer"},
		{"installshield", append([]byte("aa InstallShield bb"), padding...), "InstallShield"},
		{"plain pe", append([]byte("MZ\x90\x00 This program cannot be run in DOS mode"), padding...), "PE Executable"},
		{"unknown", append([]byte("random content"), padding...), "Unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeBytes(t, tc.name+".exe", tc.data)
			got, err := DetectInstallerType(path)
			if err != nil {
				t.Fatalf("DetectInstallerType failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetectInstallerTypeMissingFile(t *testing.T) {
	_, err := DetectInstallerType(filepath.Join(t.TempDir(), "gone.exe"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestAnalyzeRecordsParseFailureAsWarning(t *testing.T) {
	// Not a valid PE: the probe must degrade to a recorded warning, not an
	// error, so batch processing can continue.
	path := writeBytes(t, "notape.exe", []byte("MZ This program cannot be run in DOS mode but is truncated"))

	result, err := Analyze(path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.AnalysisError == "" {
		t.Error("expected a recorded analysis warning for an unparsable file")
	}
	if result.FileName != "notape.exe" || result.FileSize == 0 {
		t.Errorf("basic file info missing: %+v", result)
	}
	if result.InstallerType != "PE Executable" {
		t.Errorf("installer type = %q, want PE Executable", result.InstallerType)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	_, err := Analyze(filepath.Join(t.TempDir(), "gone.exe"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestReportFormats(t *testing.T) {
	a := &Analysis{
		FilePath:      "/tmp/setup.exe",
		FileName:      "setup.exe",
		FileSize:      1024,
		FileSizeMB:    0.001,
		InstallerType: "NSIS",
		MachineType:   "AMD64",
		Is64Bit:       true,
		ProductName:   "Test Product",
		FileVersion:   "1.0.0",
		ImportedDLLs:  []string{"kernel32.dll", "user32.dll"},
	}

	text, err := Report(a, ReportText)
	if err != nil {
		t.Fatalf("text report failed: %v", err)
	}
	for _, want := range []string{"APPLICATION ANALYSIS REPORT", "setup.exe", "Test Product", "AMD64", "kernel32.dll"} {
		if !strings.Contains(text, want) {
			t.Errorf("text report missing %q", want)
		}
	}

	jsonOut, err := Report(a, ReportJSON)
	if err != nil {
		t.Fatalf("json report failed: %v", err)
	}
	var fromJSON Analysis
	if err := json.Unmarshal([]byte(jsonOut), &fromJSON); err != nil {
		t.Fatalf("json report does not parse: %v", err)
	}
	if fromJSON.ProductName != a.ProductName {
		t.Errorf("json round trip lost product name: %+v", fromJSON)
	}

	yamlOut, err := Report(a, ReportYAML)
	if err != nil {
		t.Fatalf("yaml report failed: %v", err)
	}
	var fromYAML Analysis
	if err := yaml.Unmarshal([]byte(yamlOut), &fromYAML); err != nil {
		t.Fatalf("yaml report does not parse: %v", err)
	}
	if fromYAML.InstallerType != a.InstallerType {
		t.Errorf("yaml round trip lost installer type: %+v", fromYAML)
	}

	if _, err := Report(a, ReportFormat("xml")); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestTextReportTruncatesImports(t *testing.T) {
	a := &Analysis{FileName: "big.exe", InstallerType: "PE Executable", MachineType: "I386"}
	for i := 0; i < 25; i++ {
		a.ImportedDLLs = append(a.ImportedDLLs, "dep.dll")
	}
	text, err := Report(a, ReportText)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "... and 5 more") {
		t.Errorf("import list not truncated:\n%s", text)
	}
}
