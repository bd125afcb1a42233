// Package scripts renders the three deployment scripts (install, uninstall,
// detection) from Handlebars templates using a validated profile.
package scripts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aymerick/raymond"

	"github.com/intunepack/intunepack/internal/profile"
)

// Template file names, resolved against the template folders.
const (
	InstallTemplate   = "install.ps1.hbs"
	UninstallTemplate = "uninstall.ps1.hbs"
	DetectionTemplate = "detection.ps1.hbs"
)

// Script file names as written to the output directory.
const (
	InstallScript   = "install.ps1"
	UninstallScript = "uninstall.ps1"
	DetectionScript = "detection.ps1"
)

// TemplateError reports a missing or unrenderable template. It indicates a
// packaging defect, not a user configuration problem.
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// Renderer fills the script templates with profile content.
type Renderer struct {
	TemplateFolder  string // base template folder (shipped defaults)
	CustomTemplates string // overlay folder (overrides, takes precedence)
}

// NewRenderer creates a script renderer. customTemplates is an optional
// overlay folder that takes precedence over templateFolder.
func NewRenderer(templateFolder, customTemplates string) *Renderer {
	absTemplateFolder, err := filepath.Abs(templateFolder)
	if err != nil {
		absTemplateFolder = templateFolder
	}

	absCustomTemplates := ""
	if customTemplates != "" {
		absCustomTemplates, err = filepath.Abs(customTemplates)
		if err != nil {
			absCustomTemplates = customTemplates
		}
	}

	return &Renderer{
		TemplateFolder:  absTemplateFolder,
		CustomTemplates: absCustomTemplates,
	}
}

// resolveTemplatePath finds a file in the overlay folder first, then the
// base folder.
func (r *Renderer) resolveTemplatePath(name string) string {
	if r.CustomTemplates != "" {
		customPath := filepath.Join(r.CustomTemplates, name)
		if _, err := os.Stat(customPath); err == nil {
			return customPath
		}
	}
	return filepath.Join(r.TemplateFolder, name)
}

func (r *Renderer) render(name string, ctx map[string]interface{}) (string, error) {
	path := r.resolveTemplatePath(name)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &TemplateError{Template: name, Err: err}
	}
	result, err := raymond.Render(string(content), ctx)
	if err != nil {
		return "", &TemplateError{Template: name, Err: err}
	}
	return result, nil
}

// GenerateInstall renders the install script. A single template serves any
// installer count; the installer list preserves declaration order, which is
// the install order.
func (r *Renderer) GenerateInstall(p *profile.ApplicationProfile) (string, error) {
	ctx := baseContext(p)
	ctx["installers"] = installerContexts(p)
	ctx["detection_rules"] = ruleContexts(p)
	ctx["processes_to_kill"] = p.Uninstall.KillProcesses
	ctx["paths_to_remove"] = p.Uninstall.RemovePaths
	ctx["registry_keys_to_remove"] = p.Uninstall.RemoveRegistry
	if p.AutoCreateShortcuts {
		ctx["shortcuts"] = shortcutContexts(p)
	} else {
		ctx["shortcuts"] = []map[string]interface{}{}
	}
	return r.render(InstallTemplate, ctx)
}

// GenerateUninstall renders the uninstall script.
func (r *Renderer) GenerateUninstall(p *profile.ApplicationProfile) (string, error) {
	u := p.Uninstall
	ctx := baseContext(p)
	ctx["detection_rules"] = ruleContexts(p)
	ctx["standard_enabled"] = u.Strategy == profile.StrategyStandard || u.Strategy == profile.StrategyMulti
	ctx["force_enabled"] = (u.Strategy == profile.StrategyForce || u.Strategy == profile.StrategyMulti) && u.ForceEnabled
	ctx["uninstall_command"] = u.Command
	ctx["registry_method"] = u.Method == "registry"
	ctx["wait"] = u.Wait
	ctx["processes_to_kill"] = u.KillProcesses
	ctx["paths_to_remove"] = u.RemovePaths
	ctx["registry_keys_to_remove"] = u.RemoveRegistry
	ctx["shortcuts"] = shortcutContexts(p)
	return r.render(UninstallTemplate, ctx)
}

// GenerateDetection renders the detection script.
func (r *Renderer) GenerateDetection(p *profile.ApplicationProfile) (string, error) {
	ctx := baseContext(p)
	ctx["detection_rules"] = ruleContexts(p)
	ctx["custom_script"] = p.CustomDetectionScript
	return r.render(DetectionTemplate, ctx)
}

// GenerateAll renders all three scripts, keyed by their output file name.
func (r *Renderer) GenerateAll(p *profile.ApplicationProfile) (map[string]string, error) {
	install, err := r.GenerateInstall(p)
	if err != nil {
		return nil, err
	}
	uninstall, err := r.GenerateUninstall(p)
	if err != nil {
		return nil, err
	}
	detection, err := r.GenerateDetection(p)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		InstallScript:   install,
		UninstallScript: uninstall,
		DetectionScript: detection,
	}, nil
}

// Save renders all scripts and writes them to outputDir, creating the
// directory as needed. Scripts are written UTF-8 with CRLF line endings; the
// target interpreter requires CRLF. Returns the written file paths keyed by
// script name.
func (r *Renderer) Save(p *profile.ApplicationProfile, outputDir string) (map[string]string, error) {
	generated, err := r.GenerateAll(p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}

	paths := make(map[string]string, len(generated))
	for _, name := range []string{InstallScript, UninstallScript, DetectionScript} {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, []byte(toCRLF(generated[name])), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
		paths[name] = path
	}
	return paths, nil
}

// toCRLF normalizes line endings to CRLF without doubling existing ones.
func toCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func baseContext(p *profile.ApplicationProfile) map[string]interface{} {
	return map[string]interface{}{
		"app_name":    p.Name,
		"app_version": p.Version,
		"publisher":   p.Publisher,
		"log_name":    safeName(p.Name),
	}
}

// safeName reduces an application name to a token usable in file names.
func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func installerContexts(p *profile.ApplicationProfile) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(p.Installers))
	for _, inst := range p.Installers {
		out = append(out, map[string]interface{}{
			"name":                inst.Name,
			"file":                inst.File,
			"silent_args":         inst.SilentArgs,
			"wait_for_completion": inst.WaitForCompletion,
			"timeout":             inst.TimeoutSeconds,
			"depends_on":          inst.DependsOn,
		})
	}
	return out
}

// ruleContexts flattens the detection rule sum type into template records.
// The per-kind boolean flags drive template branching.
func ruleContexts(p *profile.ApplicationProfile) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(p.DetectionRules))
	for _, rule := range p.DetectionRules {
		ctx := map[string]interface{}{
			"is_file":     false,
			"is_registry": false,
			"is_process":  false,
			"is_script":   false,
		}
		switch r := rule.(type) {
		case profile.FileRule:
			ctx["is_file"] = true
			ctx["path"] = r.Path
			ctx["check_version"] = r.CheckVersion
			ctx["min_version"] = r.MinVersion
		case profile.RegistryRule:
			ctx["is_registry"] = true
			ctx["hive"] = r.Hive
			ctx["key"] = r.Key
			// Joined here because a backslash directly before a mustache
			// is parsed as an escaped mustache by the template engine.
			ctx["key_path"] = r.Hive + `:\` + r.Key
			ctx["value_name"] = r.ValueName
			ctx["operator"] = string(r.Operator)
			ctx["expected"] = r.Expected
			ctx["op_exists"] = r.Operator == profile.OpExists
			ctx["op_equals"] = r.Operator == profile.OpEquals
			ctx["op_greater_or_equal"] = r.Operator == profile.OpGreaterOrEqual
			ctx["op_less_than"] = r.Operator == profile.OpLessThan
		case profile.ProcessRule:
			ctx["is_process"] = true
			ctx["process_name"] = r.Name
			ctx["required"] = r.Required
		case profile.ScriptRule:
			ctx["is_script"] = true
			ctx["script_content"] = r.Content
		}
		out = append(out, ctx)
	}
	return out
}

func shortcutContexts(p *profile.ApplicationProfile) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(p.Shortcuts))
	for _, sc := range p.Shortcuts {
		desktop, startMenu := false, false
		for _, loc := range sc.Locations {
			switch loc {
			case "Desktop":
				desktop = true
			case "StartMenu":
				startMenu = true
			}
		}
		out = append(out, map[string]interface{}{
			"name":          sc.Name,
			"target":        sc.Target,
			"icon":          sc.Icon,
			"arguments":     sc.Arguments,
			"description":   sc.Description,
			"desktop":       desktop,
			"start_menu":    startMenu,
			"lnk_name":      sc.Name + ".lnk",
			"startmenu_lnk": `Programs\` + sc.Name + ".lnk",
		})
	}
	return out
}
