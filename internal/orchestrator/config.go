package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/intunepack/intunepack/internal/profile"
)

// Job describes one application to package. Exactly one input mode is set:
// a single source file, or a source folder plus the setup file within it.
type Job struct {
	Name          string
	SourceFile    string
	SourceFolder  string
	SetupFile     string
	OutputFolder  string // falls back to the batch default when empty
	CatalogFolder string
	Analyze       bool
	Quiet         bool

	// Deployment metadata carried through to the result document.
	InstallCommand   string
	UninstallCommand string
}

// BatchConfig is the parsed batch configuration document.
type BatchConfig struct {
	ToolPath            string
	DefaultOutputFolder string
	StopOnError         bool
	Jobs                []Job
}

type rawBatchApp struct {
	Name             string `yaml:"name,omitempty" json:"name,omitempty"`
	SourceFile       string `yaml:"source_file,omitempty" json:"source_file,omitempty"`
	SourceFolder     string `yaml:"source_folder,omitempty" json:"source_folder,omitempty"`
	SetupFile        string `yaml:"setup_file,omitempty" json:"setup_file,omitempty"`
	OutputFolder     string `yaml:"output_folder,omitempty" json:"output_folder,omitempty"`
	OutputDirectory  string `yaml:"output_directory,omitempty" json:"output_directory,omitempty"`
	CatalogFolder    string `yaml:"catalog_folder,omitempty" json:"catalog_folder,omitempty"`
	Analyze          *bool  `yaml:"analyze,omitempty" json:"analyze,omitempty"`
	Quiet            bool   `yaml:"quiet,omitempty" json:"quiet,omitempty"`
	InstallCommand   string `yaml:"install_command,omitempty" json:"install_command,omitempty"`
	UninstallCommand string `yaml:"uninstall_command,omitempty" json:"uninstall_command,omitempty"`
}

type rawBatchConfig struct {
	IntuneWinTool   string        `yaml:"intune_win_tool,omitempty" json:"intune_win_tool,omitempty"`
	OutputDirectory string        `yaml:"output_directory,omitempty" json:"output_directory,omitempty"`
	OutputFolder    string        `yaml:"output_folder,omitempty" json:"output_folder,omitempty"`
	StopOnError     bool          `yaml:"stop_on_error,omitempty" json:"stop_on_error,omitempty"`
	Applications    []rawBatchApp `yaml:"applications" json:"applications"`
}

// LoadBatchConfig reads and validates a batch configuration document,
// choosing the format by file extension.
func LoadBatchConfig(path string) (*BatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch config %s: %w", path, err)
	}
	cfg, err := ParseBatchConfig(data, profile.FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("parsing batch config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseBatchConfig decodes and validates a batch configuration document.
// Structural defects are reported as *profile.ValidationError.
func ParseBatchConfig(data []byte, format profile.Format) (*BatchConfig, error) {
	var raw rawBatchConfig
	var err error
	switch format {
	case profile.FormatJSON:
		err = json.Unmarshal(data, &raw)
	default:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, &profile.ValidationError{Message: fmt.Sprintf("malformed batch config: %v", err)}
	}

	if len(raw.Applications) == 0 {
		return nil, &profile.ValidationError{Field: "applications", Message: "at least one application is required"}
	}

	cfg := &BatchConfig{
		ToolPath:    raw.IntuneWinTool,
		StopOnError: raw.StopOnError,
	}
	cfg.DefaultOutputFolder = raw.OutputDirectory
	if cfg.DefaultOutputFolder == "" {
		cfg.DefaultOutputFolder = raw.OutputFolder
	}

	for i, app := range raw.Applications {
		field := fmt.Sprintf("applications[%d]", i)
		hasFile := app.SourceFile != ""
		hasFolder := app.SourceFolder != ""
		if hasFile && hasFolder {
			return nil, &profile.ValidationError{Field: field, Message: "source_file and source_folder are mutually exclusive"}
		}
		if hasFolder && app.SetupFile == "" {
			return nil, &profile.ValidationError{Field: field + ".setup_file", Message: "required when source_folder is used"}
		}

		output := app.OutputFolder
		if output == "" {
			output = app.OutputDirectory
		}

		analyze := true
		if app.Analyze != nil {
			analyze = *app.Analyze
		}

		cfg.Jobs = append(cfg.Jobs, Job{
			Name:             app.Name,
			SourceFile:       app.SourceFile,
			SourceFolder:     app.SourceFolder,
			SetupFile:        app.SetupFile,
			OutputFolder:     output,
			CatalogFolder:    app.CatalogFolder,
			Analyze:          analyze,
			Quiet:            app.Quiet,
			InstallCommand:   app.InstallCommand,
			UninstallCommand: app.UninstallCommand,
		})
	}

	return cfg, nil
}

// TemplateConfig renders an example batch configuration document for the
// init-config command.
func TemplateConfig(format profile.Format) (string, error) {
	template := rawBatchConfig{
		IntuneWinTool:   `C:\Tools\IntuneWinAppUtil.exe`,
		OutputDirectory: `C:\IntunePackages`,
		StopOnError:     false,
		Applications: []rawBatchApp{
			{
				Name:             "Example Application 1",
				SourceFile:       `C:\Installers\app1-setup.exe`,
				InstallCommand:   `app1-setup.exe /silent`,
				UninstallCommand: `C:\Program Files\App1\uninstall.exe /S`,
			},
			{
				Name:             "Example Application 2",
				SourceFolder:     `C:\Installers\App2`,
				SetupFile:        "setup.exe",
				OutputFolder:     `C:\IntunePackages\App2`,
				InstallCommand:   `setup.exe /quiet`,
				UninstallCommand: `msiexec /x {PRODUCT-GUID} /quiet`,
			},
		},
	}

	switch format {
	case profile.FormatJSON:
		data, err := json.MarshalIndent(template, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding template config: %w", err)
		}
		return string(data) + "\n", nil
	default:
		data, err := yaml.Marshal(template)
		if err != nil {
			return "", fmt.Errorf("encoding template config: %w", err)
		}
		return string(data), nil
	}
}
