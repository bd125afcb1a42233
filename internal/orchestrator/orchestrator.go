// Package orchestrator drives batch packaging: per-item analysis and
// conversion with an explicit state machine and partial-failure isolation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/intunepack/intunepack/internal/analyzer"
	"github.com/intunepack/intunepack/internal/intunewin"
)

// Status is the state of one batch item. Lifecycle:
// pending -> analyzing (optional) -> converting -> success | failed,
// or pending -> skipped when the item has no usable input or output.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAnalyzing  Status = "analyzing"
	StatusConverting Status = "converting"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// ErrMissingInput marks a job whose source file or folder does not exist.
var ErrMissingInput = errors.New("missing input")

// Converter is the conversion backend boundary.
type Converter interface {
	Convert(ctx context.Context, req intunewin.Request) (*intunewin.Result, error)
	ConvertFile(ctx context.Context, sourceFile, outputFolder string, quiet bool) (*intunewin.Result, error)
	ValidateTool(ctx context.Context) bool
}

// Prober is the binary introspection boundary. A probe failure never fails
// a job; it degrades to a recorded warning.
type Prober interface {
	Analyze(path string) (*analyzer.Analysis, error)
}

// peProber adapts the analyzer package to the Prober interface.
type peProber struct{}

func (peProber) Analyze(path string) (*analyzer.Analysis, error) {
	return analyzer.Analyze(path)
}

// ItemResult is the per-item record in the batch result document.
type ItemResult struct {
	Index           int    `yaml:"index" json:"index"`
	Status          Status `yaml:"status" json:"status"`
	Name            string `yaml:"name,omitempty" json:"name,omitempty"`
	SourceFile      string `yaml:"source_file,omitempty" json:"source_file,omitempty"`
	OutputFile      string `yaml:"output_file,omitempty" json:"output_file,omitempty"`
	InstallerType   string `yaml:"installer_type,omitempty" json:"installer_type,omitempty"`
	AnalysisWarning string `yaml:"analysis_warning,omitempty" json:"analysis_warning,omitempty"`
	Error           string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Summary is the batch result document. Successful plus Failed equals the
// number of items actually attempted; skipped items appear in Applications
// but count in neither.
type Summary struct {
	Total        int          `yaml:"total" json:"total"`
	Successful   int          `yaml:"successful" json:"successful"`
	Failed       int          `yaml:"failed" json:"failed"`
	Applications []ItemResult `yaml:"applications" json:"applications"`
}

// Orchestrator runs batch packaging jobs sequentially.
type Orchestrator struct {
	Converter Converter
	Prober    Prober
	Logf      func(format string, args ...interface{}) // optional progress output
}

// New creates an orchestrator around a concrete conversion backend. An
// empty toolPath triggers tool discovery.
func New(toolPath string) (*Orchestrator, error) {
	converter, err := intunewin.NewConverter(toolPath)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{Converter: converter, Prober: peProber{}}, nil
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}

// RunBatch processes jobs in input order, one at a time. After a failed item
// the loop continues unless stopOnError is set, in which case remaining items
// are never attempted and do not appear in the result.
func (o *Orchestrator) RunBatch(ctx context.Context, cfg *BatchConfig) *Summary {
	summary := &Summary{Total: len(cfg.Jobs)}

	for i, job := range cfg.Jobs {
		record := ItemResult{
			Index:      i + 1,
			Status:     StatusPending,
			Name:       job.Name,
			SourceFile: job.sourcePath(),
		}

		output := job.OutputFolder
		if output == "" {
			output = cfg.DefaultOutputFolder
		}

		switch {
		case job.SourceFile == "" && job.SourceFolder == "":
			record.Status = StatusSkipped
			record.Error = "no source input specified"
			o.logf("job %d: skipped (%s)", record.Index, record.Error)
			summary.Applications = append(summary.Applications, record)
			continue
		case output == "":
			record.Status = StatusSkipped
			record.Error = "no output folder specified"
			o.logf("job %d: skipped (%s)", record.Index, record.Error)
			summary.Applications = append(summary.Applications, record)
			continue
		}

		o.logf("job %d/%d: %s", record.Index, summary.Total, record.SourceFile)
		if err := o.runJob(ctx, job, output, &record); err != nil {
			record.Status = StatusFailed
			record.Error = err.Error()
			summary.Failed++
			summary.Applications = append(summary.Applications, record)
			o.logf("job %d: failed: %v", record.Index, err)
			if cfg.StopOnError {
				break
			}
			continue
		}

		record.Status = StatusSuccess
		summary.Successful++
		summary.Applications = append(summary.Applications, record)
		o.logf("job %d: success: %s", record.Index, record.OutputFile)
	}

	return summary
}

// runJob takes one item through analyzing and converting. The record is
// updated in place so partial information survives a failure.
func (o *Orchestrator) runJob(ctx context.Context, job Job, output string, record *ItemResult) error {
	setupPath := job.setupPath()
	if _, err := os.Stat(setupPath); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingInput, setupPath)
	}

	if job.Analyze && o.Prober != nil {
		record.Status = StatusAnalyzing
		analysis, err := o.Prober.Analyze(setupPath)
		if err != nil {
			record.AnalysisWarning = err.Error()
			o.logf("job %d: analysis failed, continuing: %v", record.Index, err)
		} else {
			record.InstallerType = analysis.InstallerType
			if analysis.AnalysisError != "" {
				record.AnalysisWarning = analysis.AnalysisError
			}
		}
	}

	record.Status = StatusConverting
	var result *intunewin.Result
	var err error
	if job.SourceFolder != "" {
		result, err = o.Converter.Convert(ctx, intunewin.Request{
			SourceFolder:  job.SourceFolder,
			SetupFile:     job.SetupFile,
			OutputFolder:  output,
			CatalogFolder: job.CatalogFolder,
			Quiet:         job.Quiet,
		})
	} else {
		result, err = o.Converter.ConvertFile(ctx, job.SourceFile, output, job.Quiet)
	}
	if err != nil {
		return err
	}

	record.OutputFile = result.OutputFile
	return nil
}

// SetupValidation reports which external requirements are satisfied.
type SetupValidation struct {
	ToolOK bool
}

// ValidateSetup probes the external tool with its help flag.
func (o *Orchestrator) ValidateSetup(ctx context.Context) SetupValidation {
	return SetupValidation{ToolOK: o.Converter.ValidateTool(ctx)}
}

// sourcePath is the job's primary input path for reporting.
func (j Job) sourcePath() string {
	if j.SourceFolder != "" {
		return j.SourceFolder
	}
	return j.SourceFile
}

// setupPath is the file handed to analysis and existence checks.
func (j Job) setupPath() string {
	if j.SourceFolder != "" {
		return filepath.Join(j.SourceFolder, j.SetupFile)
	}
	return j.SourceFile
}
