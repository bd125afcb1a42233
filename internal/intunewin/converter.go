// Package intunewin wraps the Microsoft Win32 Content Prep Tool
// (IntuneWinAppUtil.exe), which packages staged installer files into the
// .intunewin deployment container.
package intunewin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const toolName = "IntuneWinAppUtil.exe"

// DefaultTimeout bounds a single conversion run.
const DefaultTimeout = 10 * time.Minute

// ConversionError reports a failed or impossible conversion: the external
// tool could not be located, exited non-zero, or produced no artifact.
type ConversionError struct {
	Message string
	Stderr  string
	Err     error
}

func (e *ConversionError) Error() string {
	msg := "conversion failed: " + e.Message
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Request describes one conversion run.
type Request struct {
	SourceFolder  string // folder holding the setup files
	SetupFile     string // setup file name within SourceFolder
	OutputFolder  string // where the .intunewin artifact is written
	CatalogFolder string // optional catalog folder for signed apps
	Quiet         bool
}

// Result holds the outcome of a successful conversion.
type Result struct {
	OutputFile   string
	OutputFolder string
	Stdout       string
	Stderr       string
}

// Converter invokes the external packaging tool.
type Converter struct {
	ToolPath string
	Timeout  time.Duration
}

// NewConverter creates a converter for the given tool path. An empty path
// triggers discovery in common locations and PATH.
func NewConverter(toolPath string) (*Converter, error) {
	if toolPath == "" {
		toolPath = FindTool()
	}
	if toolPath == "" {
		return nil, &ConversionError{
			Message: toolName + " not found; download it from https://github.com/microsoft/Microsoft-Win32-Content-Prep-Tool",
		}
	}
	if _, err := os.Stat(toolPath); err != nil {
		return nil, &ConversionError{Message: "tool not accessible at " + toolPath, Err: err}
	}
	return &Converter{ToolPath: toolPath, Timeout: DefaultTimeout}, nil
}

// FindTool looks for the packaging tool in common locations, then in PATH.
// Returns an empty string when nothing is found.
func FindTool() string {
	candidates := []string{
		toolName,
		"./" + toolName,
		filepath.Join("..", "tools", toolName),
		filepath.Join(`C:\Tools`, toolName),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "Downloads", toolName))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
			return candidate
		}
	}

	if path, err := exec.LookPath(toolName); err == nil {
		return path
	}
	return ""
}

// Convert runs the packaging tool against a staged source folder and locates
// the resulting .intunewin artifact.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	if _, err := os.Stat(req.SourceFolder); err != nil {
		return nil, &ConversionError{Message: "source folder does not exist: " + req.SourceFolder, Err: err}
	}
	setupPath := filepath.Join(req.SourceFolder, req.SetupFile)
	if _, err := os.Stat(setupPath); err != nil {
		return nil, &ConversionError{Message: "setup file does not exist: " + setupPath, Err: err}
	}
	if req.CatalogFolder != "" {
		if _, err := os.Stat(req.CatalogFolder); err != nil {
			return nil, &ConversionError{Message: "catalog folder does not exist: " + req.CatalogFolder, Err: err}
		}
	}
	if err := os.MkdirAll(req.OutputFolder, 0755); err != nil {
		return nil, &ConversionError{Message: "creating output folder " + req.OutputFolder, Err: err}
	}

	args := []string{"-c", req.SourceFolder, "-s", req.SetupFile, "-o", req.OutputFolder}
	if req.CatalogFolder != "" {
		args = append(args, "-a", req.CatalogFolder)
	}
	if req.Quiet {
		args = append(args, "-q")
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.ToolPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ConversionError{Message: "tool timed out", Stderr: stderr.String(), Err: ctx.Err()}
		}
		return nil, &ConversionError{Message: "tool exited with an error", Stderr: stderr.String(), Err: err}
	}

	outputFile := findIntunewinFile(req.OutputFolder, req.SetupFile)
	if outputFile == "" {
		return nil, &ConversionError{Message: "no .intunewin artifact found in " + req.OutputFolder}
	}

	return &Result{
		OutputFile:   outputFile,
		OutputFolder: req.OutputFolder,
		Stdout:       stdout.String(),
		Stderr:       stderr.String(),
	}, nil
}

// ConvertFile packages a single installer file by staging it in a temporary
// folder. The staging folder is removed on every exit path.
func (c *Converter) ConvertFile(ctx context.Context, sourceFile, outputFolder string, quiet bool) (*Result, error) {
	if _, err := os.Stat(sourceFile); err != nil {
		return nil, &ConversionError{Message: "source file does not exist: " + sourceFile, Err: err}
	}

	tempDir, err := os.MkdirTemp("", "intunepack-staging-")
	if err != nil {
		return nil, &ConversionError{Message: "creating staging folder", Err: err}
	}
	defer os.RemoveAll(tempDir)

	baseName := filepath.Base(sourceFile)
	if err := copyFile(sourceFile, filepath.Join(tempDir, baseName)); err != nil {
		return nil, &ConversionError{Message: "staging " + sourceFile, Err: err}
	}

	return c.Convert(ctx, Request{
		SourceFolder: tempDir,
		SetupFile:    baseName,
		OutputFolder: outputFolder,
		Quiet:        quiet,
	})
}

// ValidateTool checks that the tool is runnable by invoking its help output
// with a short timeout.
func (c *Converter) ValidateTool(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, c.ToolPath, "-h")
	cmd.Stdout = &stdout
	err := cmd.Run()
	return err == nil || strings.Contains(strings.ToLower(stdout.String()), "usage")
}

// findIntunewinFile locates the generated artifact: first the expected
// <setup base name>.intunewin, then any .intunewin file in the folder.
func findIntunewinFile(outputFolder, setupFile string) string {
	baseName := strings.TrimSuffix(setupFile, filepath.Ext(setupFile))
	expected := filepath.Join(outputFolder, baseName+".intunewin")
	if _, err := os.Stat(expected); err == nil {
		return expected
	}

	entries, err := os.ReadDir(outputFolder)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".intunewin") {
			return filepath.Join(outputFolder, entry.Name())
		}
	}
	return ""
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Sync()
}
