// Package folderscan classifies the contents of an installer folder with a
// deterministic heuristic rule cascade and derives a draft packaging
// configuration from the result.
package folderscan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// FileType is the classified role of a file within an installer folder.
type FileType string

const (
	TypeInstaller  FileType = "installer"
	TypeExecutable FileType = "executable"
	TypeConfig     FileType = "config"
	TypeScript     FileType = "script"
	TypeArchive    FileType = "archive"
	TypeLicense    FileType = "license"
	TypeUnknown    FileType = "unknown"
)

// AnalyzedFile is one classified file. Confidence is always in [0.0, 1.0].
type AnalyzedFile struct {
	Path             string
	Name             string
	Size             int64
	Type             FileType
	Confidence       float64
	SuggestedPurpose string
	IsDependency     bool   // set for installers recognized as runtime dependencies
	InstallerKind    string // "msi" for MSI packages, empty otherwise
}

// Result aggregates the classification of a whole folder.
type Result struct {
	MainInstaller         *AnalyzedFile
	Dependencies          []AnalyzedFile
	StandaloneExecutables []AnalyzedFile
	ConfigFiles           []AnalyzedFile
	Scripts               []AnalyzedFile
	Archives              []AnalyzedFile
	LicenseFiles          []AnalyzedFile
	UnknownFiles          []AnalyzedFile

	Confidence  float64
	Warnings    []string
	Suggestions []string
}

var (
	scriptExtensions  = map[string]bool{".bat": true, ".cmd": true, ".ps1": true, ".vbs": true}
	configExtensions  = map[string]bool{".ini": true, ".cfg": true, ".conf": true, ".config": true, ".def": true, ".xml": true, ".json": true}
	archiveExtensions = map[string]bool{".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true}

	databaseKeywords = []string{"firebird", "mysql", "postgres", "oracle", "mssql", "sqlite"}
	licenseKeywords  = []string{"hasp", "sentinel", "dongle", "license", "lic", "key", "activation"}
	helperKeywords   = []string{"getip", "username", "sysinfo", "regutil"}
)

const (
	installerSizeFloor  = 1_000_000
	largeInstallerSize  = 50_000_000
	standaloneSizeFloor = 5_000_000

	// Installers smaller than this fraction of the main installer are
	// treated as dependencies.
	dependencySizeRatio = 0.3
)

// AnalyzeFolder recursively scans a directory and classifies every
// non-hidden file, then derives main-installer, dependency and standalone
// selections plus warnings and suggestions.
func AnalyzeFolder(folder string) (*Result, error) {
	var installers, executables []AnalyzedFile
	result := &Result{}

	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || name == "Thumbs.db" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		analyzed := classifyFile(path, name, info.Size())
		switch analyzed.Type {
		case TypeInstaller:
			installers = append(installers, analyzed)
		case TypeExecutable:
			executables = append(executables, analyzed)
		case TypeConfig:
			result.ConfigFiles = append(result.ConfigFiles, analyzed)
		case TypeScript:
			result.Scripts = append(result.Scripts, analyzed)
		case TypeArchive:
			result.Archives = append(result.Archives, analyzed)
		case TypeLicense:
			result.LicenseFiles = append(result.LicenseFiles, analyzed)
		default:
			result.UnknownFiles = append(result.UnknownFiles, analyzed)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning folder %s: %w", folder, err)
	}

	result.MainInstaller = selectMainInstaller(installers)
	result.Dependencies = selectDependencies(installers, result.MainInstaller)
	result.StandaloneExecutables = selectStandalone(executables)

	result.Confidence = overallConfidence(result)
	result.Warnings = buildWarnings(result)
	result.Suggestions = buildSuggestions(result)

	return result, nil
}

// classifyFile applies the ordered rule cascade. The order matters: later
// rules assume earlier ones did not match.
func classifyFile(path, name string, size int64) AnalyzedFile {
	lower := strings.ToLower(name)
	ext := strings.ToLower(filepath.Ext(name))

	analyzed := AnalyzedFile{
		Path:             path,
		Name:             name,
		Size:             size,
		Type:             TypeUnknown,
		Confidence:       0.5,
		SuggestedPurpose: "Unknown",
	}

	if scriptExtensions[ext] {
		analyzed.Type = TypeScript
		analyzed.Confidence = 0.9
		analyzed.SuggestedPurpose = "Installation script or helper"
		return analyzed
	}

	if configExtensions[ext] {
		analyzed.Type = TypeConfig
		analyzed.Confidence = 0.9
		analyzed.SuggestedPurpose = "Configuration file"
		return analyzed
	}

	if archiveExtensions[ext] {
		analyzed.Type = TypeArchive
		analyzed.Confidence = 0.9
		analyzed.SuggestedPurpose = "Archive (may contain additional components)"
		if containsAny(lower, licenseKeywords) {
			analyzed.Type = TypeLicense
			analyzed.SuggestedPurpose = "License/dongle drivers"
		}
		return analyzed
	}

	if ext == ".msi" {
		analyzed.Type = TypeInstaller
		analyzed.Confidence = 1.0
		analyzed.SuggestedPurpose = "MSI installer"
		analyzed.InstallerKind = "msi"
		return analyzed
	}

	if ext == ".exe" {
		switch {
		case containsAny(lower, []string{"install", "setup", "deploy"}) && size > installerSizeFloor:
			analyzed.Type = TypeInstaller
			analyzed.Confidence = 0.8
			analyzed.SuggestedPurpose = "Main installer"
		case containsAny(lower, databaseKeywords):
			analyzed.Type = TypeInstaller
			analyzed.Confidence = 0.85
			analyzed.SuggestedPurpose = "Database installer (dependency)"
			analyzed.IsDependency = true
		case containsAny(lower, helperKeywords):
			analyzed.Type = TypeExecutable
			analyzed.Confidence = 0.7
			analyzed.SuggestedPurpose = "Helper utility"
		case size > installerSizeFloor && size < largeInstallerSize:
			analyzed.Type = TypeExecutable
			analyzed.Confidence = 0.6
			analyzed.SuggestedPurpose = "Standalone executable (possible replacement file)"
		case size >= largeInstallerSize:
			analyzed.Type = TypeInstaller
			analyzed.Confidence = 0.75
			analyzed.SuggestedPurpose = "Main installer (large package)"
		default:
			analyzed.Type = TypeExecutable
			analyzed.Confidence = 0.5
			analyzed.SuggestedPurpose = "Executable utility"
		}
		return analyzed
	}

	return analyzed
}

// selectMainInstaller picks the largest installer and boosts its confidence
// when its name hints at being an installer.
func selectMainInstaller(installers []AnalyzedFile) *AnalyzedFile {
	if len(installers) == 0 {
		return nil
	}
	main := installers[0]
	for _, f := range installers[1:] {
		if f.Size > main.Size {
			main = f
		}
	}
	if containsAny(strings.ToLower(main.Name), []string{"install", "setup"}) {
		main.Confidence = min(main.Confidence+0.15, 1.0)
	}
	main.SuggestedPurpose = "Main installer"
	return &main
}

// selectDependencies returns every non-main installer that is either flagged
// as a dependency or much smaller than the main installer. With no main
// installer there is nothing to depend on, so the list stays empty and the
// missing-main warning carries the signal instead.
func selectDependencies(installers []AnalyzedFile, main *AnalyzedFile) []AnalyzedFile {
	if main == nil {
		return nil
	}
	var deps []AnalyzedFile
	for _, inst := range installers {
		if inst.Path == main.Path {
			continue
		}
		switch {
		case inst.IsDependency:
			inst.SuggestedPurpose = "Dependency installer"
			deps = append(deps, inst)
		case float64(inst.Size) < float64(main.Size)*dependencySizeRatio:
			inst.SuggestedPurpose = "Dependency installer (likely)"
			inst.Confidence = 0.7
			deps = append(deps, inst)
		}
	}
	sort.SliceStable(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })
	return deps
}

func selectStandalone(executables []AnalyzedFile) []AnalyzedFile {
	var standalone []AnalyzedFile
	for _, exe := range executables {
		if exe.Size > standaloneSizeFloor && exe.Size < largeInstallerSize {
			exe.SuggestedPurpose = "Possible replacement file (copy after install)"
			exe.Confidence = 0.65
			standalone = append(standalone, exe)
		}
	}
	return standalone
}

// overallConfidence is the arithmetic mean over the selected files, or 0.5
// when nothing was selected.
func overallConfidence(result *Result) float64 {
	var sum float64
	var n int
	if result.MainInstaller != nil {
		sum += result.MainInstaller.Confidence
		n++
	}
	for _, d := range result.Dependencies {
		sum += d.Confidence
		n++
	}
	for _, s := range result.StandaloneExecutables {
		sum += s.Confidence
		n++
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

func buildWarnings(result *Result) []string {
	var warnings []string
	if result.MainInstaller == nil {
		warnings = append(warnings, "No main installer detected. Manual configuration required.")
	}
	if n := len(result.StandaloneExecutables); n > 0 {
		warnings = append(warnings, fmt.Sprintf("Found %d standalone executable(s). These may need to be copied after installation.", n))
	}
	if n := len(result.Dependencies); n > 1 {
		warnings = append(warnings, fmt.Sprintf("Found %d dependencies. Verify installation order.", n))
	}
	if result.Confidence < 0.6 {
		warnings = append(warnings, "Low confidence in analysis. Please review and adjust configuration manually.")
	}
	return warnings
}

func buildSuggestions(result *Result) []string {
	var suggestions []string
	if result.MainInstaller != nil {
		suggestions = append(suggestions, fmt.Sprintf("Main installer detected: %s. Test silent install arguments.", result.MainInstaller.Name))
	}
	if len(result.Dependencies) > 0 {
		suggestions = append(suggestions, "Install dependencies before main application for best results.")
	}
	for _, exe := range result.StandaloneExecutables {
		suggestions = append(suggestions, fmt.Sprintf("Consider adding post-install file replacement for: %s", exe.Name))
	}
	if n := len(result.Scripts); n > 0 {
		suggestions = append(suggestions, fmt.Sprintf("Found %d script(s). Review for installation commands and arguments.", n))
	}
	if n := len(result.ConfigFiles); n > 0 {
		suggestions = append(suggestions, fmt.Sprintf("Found %d config file(s). Consider copying these after installation.", n))
	}
	return suggestions
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
