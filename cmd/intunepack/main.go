package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/intunepack/intunepack/internal/analyzer"
	"github.com/intunepack/intunepack/internal/cli"
	"github.com/intunepack/intunepack/internal/folderscan"
	"github.com/intunepack/intunepack/internal/intunewin"
	"github.com/intunepack/intunepack/internal/orchestrator"
	"github.com/intunepack/intunepack/internal/profile"
	"github.com/intunepack/intunepack/internal/scripts"
)

// Version is set via ldflags at build time
var Version = "1.0.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(10)
	}

	command := strings.ToLower(os.Args[1])
	args := convertWindowsArgs(os.Args[2:])

	var err error
	switch command {
	case "scripts":
		err = runScripts(args)
	case "scan":
		err = runScan(args)
	case "analyze":
		err = runAnalyze(args)
	case "convert":
		err = runConvert(args)
	case "batch":
		err = runBatch(args)
	case "init-config":
		err = runInitConfig(args)
	case "validate":
		err = runValidate(args)
	case "version":
		fmt.Printf("intunepack %s [%s/%s]\n", Version, runtime.GOOS, runtime.GOARCH)
	case "help", "-h", "--help", "-?":
		printUsage()
	default:
		cli.Errorf("unknown command: %s", command)
		printUsage()
		os.Exit(10)
	}

	if err != nil {
		cli.Errorf("%v", err)
		os.Exit(1)
	}
}

// convertWindowsArgs rewrites /FLAG syntax to --flag for the flag package.
func convertWindowsArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "/") && !strings.Contains(arg, "\\") &&
			!strings.Contains(arg, ":") && !strings.Contains(arg[1:], "/"):
			// /FLAG -> --flag (but not paths like /c/foo or /flag:value)
			out = append(out, "--"+strings.ToLower(arg[1:]))
		case strings.HasPrefix(arg, "/") && strings.Contains(arg, ":") && !strings.HasPrefix(arg, "/c/"):
			// /FLAG:value -> --flag=value
			parts := strings.SplitN(arg, ":", 2)
			out = append(out, "--"+strings.ToLower(parts[0][1:])+"="+parts[1])
		default:
			out = append(out, arg)
		}
	}
	return out
}

func runScripts(args []string) error {
	fs := flag.NewFlagSet("scripts", flag.ExitOnError)
	output := fs.String("output", "", "output directory for the generated scripts")
	templateFolder := fs.String("templatefolder", "", "base template folder")
	customTemplates := fs.String("customtemplates", "", "overlay template folder (takes precedence)")
	preview := fs.String("preview", "", "print one script instead of saving (install, uninstall, detection)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: intunepack scripts [OPTIONS] PROFILE")
	}

	profilePath := fs.Arg(0)
	p, err := profile.Load(profilePath)
	if err != nil {
		return err
	}
	cli.Infof("Loaded profile: %s v%s (%s)", p.Name, p.Version, p.Publisher)

	base := *templateFolder
	if base == "" {
		base = defaultTemplateFolder()
	}
	custom := *customTemplates
	if custom == "" {
		custom = defaultCustomTemplates()
	}
	renderer := scripts.NewRenderer(base, custom)

	if *preview != "" {
		var content string
		switch *preview {
		case "install":
			content, err = renderer.GenerateInstall(p)
		case "uninstall":
			content, err = renderer.GenerateUninstall(p)
		case "detection":
			content, err = renderer.GenerateDetection(p)
		default:
			return fmt.Errorf("unknown script type %q", *preview)
		}
		if err != nil {
			return err
		}
		fmt.Print(content)
		return nil
	}

	outDir := *output
	if outDir == "" {
		outDir = filepath.Join(filepath.Dir(profilePath), "scripts")
	}
	paths, err := renderer.Save(p, outDir)
	if err != nil {
		return err
	}
	for _, name := range []string{scripts.InstallScript, scripts.UninstallScript, scripts.DetectionScript} {
		cli.Successf("Written: %s", cli.Filename(paths[name]))
	}
	return nil
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	name := fs.String("name", "", "application name for the draft config")
	draft := fs.String("draft", "", "write a draft configuration document to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: intunepack scan [OPTIONS] FOLDER")
	}

	folder := fs.Arg(0)
	result, err := folderscan.AnalyzeFolder(folder)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned %s (confidence %.2f)\n", folder, result.Confidence)
	if result.MainInstaller != nil {
		cli.Successf("Main installer: %s (%.1f MB, confidence %.2f)",
			result.MainInstaller.Name, float64(result.MainInstaller.Size)/1_000_000, result.MainInstaller.Confidence)
	}
	for _, dep := range result.Dependencies {
		cli.Infof("Dependency: %s (%s)", dep.Name, dep.SuggestedPurpose)
	}
	for _, exe := range result.StandaloneExecutables {
		cli.Infof("Standalone: %s (%s)", exe.Name, exe.SuggestedPurpose)
	}
	for _, w := range result.Warnings {
		cli.Warningf("%s", w)
	}
	for _, s := range result.Suggestions {
		fmt.Printf("  hint: %s\n", s)
	}

	if *draft != "" {
		appName := *name
		if appName == "" {
			appName = filepath.Base(folder)
		}
		content := folderscan.GenerateDraft(result, appName)
		if err := os.WriteFile(*draft, []byte(content), 0644); err != nil {
			return fmt.Errorf("writing draft config: %w", err)
		}
		cli.Successf("Draft config written: %s", cli.Filename(*draft))
	}
	return nil
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	format := fs.String("format", "text", "report format (text, json, yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: intunepack analyze [OPTIONS] FILE")
	}

	result, err := analyzer.Analyze(fs.Arg(0))
	if err != nil {
		return err
	}
	report, err := analyzer.Report(result, analyzer.ReportFormat(*format))
	if err != nil {
		return err
	}
	fmt.Print(report)
	return nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	output := fs.String("output", ".", "output directory for the .intunewin file")
	tool := fs.String("tool", "", "path to IntuneWinAppUtil.exe")
	setup := fs.String("setup", "", "setup file name (treats the argument as a source folder)")
	catalog := fs.String("catalog", "", "catalog folder for signed apps")
	quiet := fs.Bool("quiet", false, "suppress tool output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: intunepack convert [OPTIONS] SOURCE")
	}

	converter, err := intunewin.NewConverter(*tool)
	if err != nil {
		return err
	}
	cli.Infof("Using tool: %s", converter.ToolPath)

	var result *intunewin.Result
	if *setup != "" {
		result, err = converter.Convert(context.Background(), intunewin.Request{
			SourceFolder:  fs.Arg(0),
			SetupFile:     *setup,
			OutputFolder:  *output,
			CatalogFolder: *catalog,
			Quiet:         *quiet,
		})
	} else {
		result, err = converter.ConvertFile(context.Background(), fs.Arg(0), *output, *quiet)
	}
	if err != nil {
		return err
	}
	cli.Successf("Created: %s", cli.Filename(result.OutputFile))
	return nil
}

func runBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "list the planned jobs without converting")
	resultPath := fs.String("result", "", "write the batch result document to this file (YAML or JSON)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: intunepack batch [OPTIONS] CONFIG")
	}

	cfg, err := orchestrator.LoadBatchConfig(fs.Arg(0))
	if err != nil {
		return err
	}

	if *dryRun {
		fmt.Printf("Batch plan: %d application(s)\n", len(cfg.Jobs))
		for i, job := range cfg.Jobs {
			label := job.Name
			if label == "" {
				label = job.SourceFile
				if label == "" {
					label = job.SourceFolder
				}
			}
			fmt.Printf("  %d. %s\n", i+1, label)
		}
		cli.Infof("[dry-run] no conversions executed")
		return nil
	}

	o, err := orchestrator.New(cfg.ToolPath)
	if err != nil {
		return err
	}
	o.Logf = func(format string, a ...interface{}) {
		fmt.Printf(format+"\n", a...)
	}

	summary := o.RunBatch(context.Background(), cfg)

	fmt.Println()
	fmt.Printf("Batch complete: %d total, %s, %s\n",
		summary.Total,
		cli.Success(fmt.Sprintf("%d successful", summary.Successful)),
		cli.Error(fmt.Sprintf("%d failed", summary.Failed)))
	for _, record := range summary.Applications {
		switch record.Status {
		case orchestrator.StatusSuccess:
			cli.Successf("%d: %s", record.Index, record.OutputFile)
		case orchestrator.StatusSkipped:
			cli.Warningf("%d: skipped (%s)", record.Index, record.Error)
		default:
			cli.Errorf("%d: %s", record.Index, record.Error)
		}
	}

	if *resultPath != "" {
		if err := writeBatchResult(summary, *resultPath); err != nil {
			return err
		}
		cli.Successf("Result written: %s", cli.Filename(*resultPath))
	}

	if summary.Failed > 0 {
		os.Exit(2)
	}
	return nil
}

func runInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	format := fs.String("format", "yaml", "output format (yaml, json)")
	output := fs.String("output", "", "write the template to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var f profile.Format
	switch strings.ToLower(*format) {
	case "yaml", "yml":
		f = profile.FormatYAML
	case "json":
		f = profile.FormatJSON
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	content, err := orchestrator.TemplateConfig(f)
	if err != nil {
		return err
	}
	if *output == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(*output, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing template config: %w", err)
	}
	cli.Successf("Template config written: %s", cli.Filename(*output))
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	tool := fs.String("tool", "", "path to IntuneWinAppUtil.exe")
	if err := fs.Parse(args); err != nil {
		return err
	}

	o, err := orchestrator.New(*tool)
	if err != nil {
		return err
	}
	validation := o.ValidateSetup(context.Background())
	if validation.ToolOK {
		cli.Successf("IntuneWinAppUtil is runnable")
		return nil
	}
	return fmt.Errorf("IntuneWinAppUtil did not respond to its help flag")
}

func writeBatchResult(summary *orchestrator.Summary, path string) error {
	var data []byte
	var err error
	switch profile.FormatForPath(path) {
	case profile.FormatJSON:
		data, err = json.MarshalIndent(summary, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	default:
		data, err = yaml.Marshal(summary)
	}
	if err != nil {
		return fmt.Errorf("encoding batch result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing batch result: %w", err)
	}
	return nil
}

// defaultTemplateFolder returns the template folder search result.
// Search order:
// 1. %LOCALAPPDATA%\intunepack\templates (installed location)
// 2. Executable directory\templates (portable/dev)
// 3. Current directory\templates (fallback)
func defaultTemplateFolder() string {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		installedPath := filepath.Join(localAppData, "intunepack", "templates")
		if _, err := os.Stat(installedPath); err == nil {
			return installedPath
		}
	}

	if exePath, err := os.Executable(); err == nil {
		exeTemplates := filepath.Join(filepath.Dir(exePath), "templates")
		if _, err := os.Stat(exeTemplates); err == nil {
			return exeTemplates
		}
	}

	return "templates"
}

// defaultCustomTemplates returns %LOCALAPPDATA%\intunepack\custom when it
// exists, otherwise empty (no overlay).
func defaultCustomTemplates() string {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		customPath := filepath.Join(localAppData, "intunepack", "custom")
		if _, err := os.Stat(customPath); err == nil {
			return customPath
		}
	}
	return ""
}

func printUsage() {
	fmt.Printf("intunepack - Version %s\n", Version)
	fmt.Printf("Windows app packaging pipeline for Intune deployment [%s/%s]\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println()
	fmt.Println("Usage: intunepack COMMAND [OPTIONS] [ARGS]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  scripts PROFILE      Generate install/uninstall/detection scripts")
	fmt.Println("  scan FOLDER          Classify an installer folder, optionally emit a draft config")
	fmt.Println("  analyze FILE         Extract PE metadata and installer type from an executable")
	fmt.Println("  convert SOURCE       Package a file or folder into .intunewin format")
	fmt.Println("  batch CONFIG         Package many applications from a batch config")
	fmt.Println("  init-config          Print a template batch configuration")
	fmt.Println("  validate             Check that the conversion tool is available")
	fmt.Println("  version              Show version information")
	fmt.Println()
	fmt.Println("Options use --flag or Windows /FLAG syntax:")
	fmt.Println("  intunepack scripts /OUTPUT:C:\\pkg\\scripts app.yaml")
	fmt.Println("  intunepack scan /DRAFT:draft.yaml C:\\Installers\\App")
	fmt.Println("  intunepack analyze /FORMAT:json setup.exe")
	fmt.Println("  intunepack batch /DRY-RUN batch.yaml")
	fmt.Println("  intunepack convert /SETUP:setup.exe /OUTPUT:C:\\pkg C:\\Installers\\App")
}
