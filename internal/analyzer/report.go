package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReportFormat selects the rendering of an analysis report.
type ReportFormat string

const (
	ReportText ReportFormat = "text"
	ReportJSON ReportFormat = "json"
	ReportYAML ReportFormat = "yaml"
)

// Report renders the analysis in the requested format.
func Report(a *Analysis, format ReportFormat) (string, error) {
	switch format {
	case ReportJSON:
		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding report: %w", err)
		}
		return string(data) + "\n", nil
	case ReportYAML:
		data, err := yaml.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encoding report: %w", err)
		}
		return string(data), nil
	case ReportText, "":
		return textReport(a), nil
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

const reportRule = "----------------------------------------------------------------------"

func textReport(a *Analysis) string {
	var b strings.Builder
	double := strings.Repeat("=", 70)

	fmt.Fprintln(&b, double)
	fmt.Fprintln(&b, "APPLICATION ANALYSIS REPORT")
	fmt.Fprintln(&b, double)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "BASIC INFORMATION")
	fmt.Fprintln(&b, reportRule)
	fmt.Fprintf(&b, "File Name:     %s\n", a.FileName)
	fmt.Fprintf(&b, "File Path:     %s\n", a.FilePath)
	fmt.Fprintf(&b, "File Size:     %.2f MB\n", a.FileSizeMB)
	fmt.Fprintf(&b, "Installer:     %s\n", a.InstallerType)
	fmt.Fprintln(&b)

	if a.ProductName != "" || a.FileVersion != "" {
		fmt.Fprintln(&b, "VERSION INFORMATION")
		fmt.Fprintln(&b, reportRule)
		if a.ProductName != "" {
			fmt.Fprintf(&b, "Product Name:  %s\n", a.ProductName)
		}
		if a.FileVersion != "" {
			fmt.Fprintf(&b, "File Version:  %s\n", a.FileVersion)
		}
		if a.ProductVersion != "" {
			fmt.Fprintf(&b, "Product Ver:   %s\n", a.ProductVersion)
		}
		if a.CompanyName != "" {
			fmt.Fprintf(&b, "Company:       %s\n", a.CompanyName)
		}
		if a.Description != "" {
			fmt.Fprintf(&b, "Description:   %s\n", a.Description)
		}
		fmt.Fprintln(&b)
	}

	if a.MachineType != "" {
		fmt.Fprintln(&b, "TECHNICAL INFORMATION")
		fmt.Fprintln(&b, reportRule)
		fmt.Fprintf(&b, "Machine Type:  %s\n", a.MachineType)
		fmt.Fprintf(&b, "64-bit:        %v\n", a.Is64Bit)
		if a.Subsystem != "" {
			fmt.Fprintf(&b, "Subsystem:     %s\n", a.Subsystem)
		}
		fmt.Fprintln(&b)
	}

	if len(a.ImportedDLLs) > 0 {
		fmt.Fprintln(&b, "DEPENDENCIES (Imported DLLs)")
		fmt.Fprintln(&b, reportRule)
		shown := a.ImportedDLLs
		if len(shown) > 20 {
			shown = shown[:20]
		}
		for _, dll := range shown {
			fmt.Fprintf(&b, "  - %s\n", dll)
		}
		if rest := len(a.ImportedDLLs) - 20; rest > 0 {
			fmt.Fprintf(&b, "  ... and %d more\n", rest)
		}
		fmt.Fprintln(&b)
	}

	if a.AnalysisError != "" {
		fmt.Fprintln(&b, "ANALYSIS WARNINGS")
		fmt.Fprintln(&b, reportRule)
		fmt.Fprintf(&b, "  %s\n", a.AnalysisError)
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, double)
	return b.String()
}
