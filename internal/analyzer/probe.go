// Package analyzer extracts metadata from Windows executables: PE headers,
// version resources, imported DLLs and installer-type signatures.
package analyzer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	peparser "github.com/saferwall/pe"
)

// SectionInfo describes one PE section.
type SectionInfo struct {
	Name           string `yaml:"name" json:"name"`
	VirtualSize    uint32 `yaml:"virtual_size" json:"virtual_size"`
	VirtualAddress uint32 `yaml:"virtual_address" json:"virtual_address"`
}

// Analysis is the result of probing one executable. PE-level fields stay
// zero when the binary could not be parsed; in that case AnalysisError
// records the reason and the rest of the result is still usable.
type Analysis struct {
	FilePath   string  `yaml:"file_path" json:"file_path"`
	FileName   string  `yaml:"file_name" json:"file_name"`
	FileSize   int64   `yaml:"file_size" json:"file_size"`
	FileSizeMB float64 `yaml:"file_size_mb" json:"file_size_mb"`

	InstallerType string `yaml:"installer_type" json:"installer_type"`

	MachineType          string `yaml:"machine_type,omitempty" json:"machine_type,omitempty"`
	Is64Bit              bool   `yaml:"is_64bit" json:"is_64bit"`
	Subsystem            string `yaml:"subsystem,omitempty" json:"subsystem,omitempty"`
	CompilationTimestamp uint32 `yaml:"compilation_timestamp,omitempty" json:"compilation_timestamp,omitempty"`

	ProductName    string `yaml:"product_name,omitempty" json:"product_name,omitempty"`
	FileVersion    string `yaml:"file_version,omitempty" json:"file_version,omitempty"`
	ProductVersion string `yaml:"product_version,omitempty" json:"product_version,omitempty"`
	CompanyName    string `yaml:"company_name,omitempty" json:"company_name,omitempty"`
	Description    string `yaml:"description,omitempty" json:"description,omitempty"`
	Copyright      string `yaml:"copyright,omitempty" json:"copyright,omitempty"`

	ImportedDLLs []string      `yaml:"imported_dlls,omitempty" json:"imported_dlls,omitempty"`
	Sections     []SectionInfo `yaml:"sections,omitempty" json:"sections,omitempty"`

	AnalysisError string `yaml:"analysis_error,omitempty" json:"analysis_error,omitempty"`
}

var machineTypes = map[uint16]string{
	0x014c: "I386",
	0x8664: "AMD64",
	0x0200: "IA64",
	0xAA64: "ARM64",
	0x01c4: "ARM",
}

var subsystems = map[uint16]string{
	1: "Native",
	2: "Windows GUI",
	3: "Windows CUI (Console)",
	5: "OS/2 CUI",
	7: "POSIX CUI",
	9: "Windows CE GUI",
}

// Analyze probes a single executable. A missing file is an error; a file
// that cannot be parsed as PE is not, the failure is recorded on the result
// instead so callers can proceed with what was gathered.
func Analyze(path string) (*Analysis, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", path, err)
	}

	result := &Analysis{
		FilePath:   path,
		FileName:   filepath.Base(path),
		FileSize:   info.Size(),
		FileSizeMB: float64(info.Size()) / (1024 * 1024),
	}

	installerType, err := DetectInstallerType(path)
	if err != nil {
		return nil, err
	}
	result.InstallerType = installerType

	if err := probePE(path, result); err != nil {
		result.AnalysisError = err.Error()
	}
	return result, nil
}

func probePE(path string, result *Analysis) error {
	f, err := peparser.New(path, &peparser.Options{})
	if err != nil {
		return fmt.Errorf("opening PE: %w", err)
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		return fmt.Errorf("parsing PE: %w", err)
	}

	machine := uint16(f.NtHeader.FileHeader.Machine)
	if name, ok := machineTypes[machine]; ok {
		result.MachineType = name
	} else {
		result.MachineType = fmt.Sprintf("Unknown (0x%04x)", machine)
	}
	result.Is64Bit = f.Is64
	result.CompilationTimestamp = f.NtHeader.FileHeader.TimeDateStamp

	var subsystem uint16
	switch oh := f.NtHeader.OptionalHeader.(type) {
	case peparser.ImageOptionalHeader32:
		subsystem = uint16(oh.Subsystem)
	case peparser.ImageOptionalHeader64:
		subsystem = uint16(oh.Subsystem)
	}
	if name, ok := subsystems[subsystem]; ok {
		result.Subsystem = name
	} else if subsystem != 0 {
		result.Subsystem = fmt.Sprintf("Unknown (%d)", subsystem)
	}

	for _, imp := range f.Imports {
		result.ImportedDLLs = append(result.ImportedDLLs, imp.Name)
	}

	for _, section := range f.Sections {
		result.Sections = append(result.Sections, SectionInfo{
			Name:           strings.TrimRight(string(section.Header.Name[:]), "\x00"),
			VirtualSize:    section.Header.VirtualSize,
			VirtualAddress: section.Header.VirtualAddress,
		})
	}

	if versionInfo, err := f.ParseVersionResources(); err == nil {
		result.ProductName = versionInfo["ProductName"]
		result.FileVersion = versionInfo["FileVersion"]
		result.ProductVersion = versionInfo["ProductVersion"]
		result.CompanyName = versionInfo["CompanyName"]
		result.Description = versionInfo["FileDescription"]
		result.Copyright = versionInfo["LegalCopyright"]
	}

	return nil
}
