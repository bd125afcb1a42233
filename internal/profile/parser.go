package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the document encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatForPath maps a file extension to a document format. Everything that
// is not .json is treated as YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Raw document structure. Field names follow the configuration schema; the
// raw types are decoded as-is and converted to the typed graph in a second
// pass, so defaulting and validation live in one place.

type rawDocument struct {
	Application  rawApplication    `yaml:"application" json:"application"`
	Installers   []rawInstaller    `yaml:"installers" json:"installers"`
	Detection    rawDetection      `yaml:"detection" json:"detection"`
	Uninstall    rawUninstall      `yaml:"uninstall" json:"uninstall"`
	Shortcuts    rawShortcuts      `yaml:"shortcuts" json:"shortcuts"`
	Intune       rawIntune         `yaml:"intune" json:"intune"`
	Assignments  []rawAssignment   `yaml:"assignments,omitempty" json:"assignments,omitempty"`
	Dependencies []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Supersedence []string          `yaml:"supersedence,omitempty" json:"supersedence,omitempty"`
	CompanyPortal rawCompanyPortal `yaml:"company_portal" json:"company_portal"`
	Testing      rawTesting        `yaml:"testing" json:"testing"`
}

type rawApplication struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Publisher   string `yaml:"publisher" json:"publisher"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type rawInstaller struct {
	Name              string   `yaml:"name" json:"name"`
	File              string   `yaml:"file" json:"file"`
	SilentArgs        string   `yaml:"silent_args" json:"silent_args"`
	WaitForCompletion *bool    `yaml:"wait_for_completion,omitempty" json:"wait_for_completion,omitempty"`
	Timeout           *int     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	DependsOn         []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

type rawDetectionRule struct {
	Type string `yaml:"type" json:"type"`

	// file
	Path         string `yaml:"path,omitempty" json:"path,omitempty"`
	CheckVersion bool   `yaml:"check_version,omitempty" json:"check_version,omitempty"`
	MinVersion   string `yaml:"min_version,omitempty" json:"min_version,omitempty"`

	// registry
	Hive     string `yaml:"hive,omitempty" json:"hive,omitempty"`
	Value    string `yaml:"value,omitempty" json:"value,omitempty"`
	Operator string `yaml:"operator,omitempty" json:"operator,omitempty"`
	Expected string `yaml:"expected,omitempty" json:"expected,omitempty"`

	// process
	ProcessName string `yaml:"process_name,omitempty" json:"process_name,omitempty"`
	Required    *bool  `yaml:"required,omitempty" json:"required,omitempty"`

	// script
	ScriptContent string `yaml:"script_content,omitempty" json:"script_content,omitempty"`
}

type rawDetection struct {
	Method       string             `yaml:"method,omitempty" json:"method,omitempty"`
	Rules        []rawDetectionRule `yaml:"rules,omitempty" json:"rules,omitempty"`
	CustomScript string             `yaml:"custom_script,omitempty" json:"custom_script,omitempty"`
}

type rawStandardUninstall struct {
	Method  string `yaml:"method,omitempty" json:"method,omitempty"`
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
	Wait    *bool  `yaml:"wait,omitempty" json:"wait,omitempty"`
}

type rawForceUninstall struct {
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	KillProcesses  []string `yaml:"kill_processes,omitempty" json:"kill_processes,omitempty"`
	RemovePaths    []string `yaml:"remove_paths,omitempty" json:"remove_paths,omitempty"`
	RemoveRegistry []string `yaml:"remove_registry,omitempty" json:"remove_registry,omitempty"`
}

type rawUninstall struct {
	Strategy string               `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Standard rawStandardUninstall `yaml:"standard,omitempty" json:"standard,omitempty"`
	Force    rawForceUninstall    `yaml:"force,omitempty" json:"force,omitempty"`
}

type rawShortcut struct {
	Name        string   `yaml:"name" json:"name"`
	Target      string   `yaml:"target" json:"target"`
	Locations   []string `yaml:"locations" json:"locations"`
	Icon        string   `yaml:"icon,omitempty" json:"icon,omitempty"`
	Arguments   string   `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

type rawShortcuts struct {
	AutoCreate *bool         `yaml:"auto_create,omitempty" json:"auto_create,omitempty"`
	Locations  []rawShortcut `yaml:"locations,omitempty" json:"locations,omitempty"`
}

type rawRequirements struct {
	MinimumOS          string `yaml:"minimum_os,omitempty" json:"minimum_os,omitempty"`
	Architecture       string `yaml:"architecture,omitempty" json:"architecture,omitempty"`
	MinimumDiskSpaceMB *int   `yaml:"minimum_disk_space_mb,omitempty" json:"minimum_disk_space_mb,omitempty"`
	MinimumMemoryMB    *int   `yaml:"minimum_memory_mb,omitempty" json:"minimum_memory_mb,omitempty"`
}

type rawIntune struct {
	InstallCommand          string          `yaml:"install_command,omitempty" json:"install_command,omitempty"`
	UninstallCommand        string          `yaml:"uninstall_command,omitempty" json:"uninstall_command,omitempty"`
	InstallTimeMinutes      *int            `yaml:"install_time_minutes,omitempty" json:"install_time_minutes,omitempty"`
	AllowAvailableUninstall *bool           `yaml:"allow_available_uninstall,omitempty" json:"allow_available_uninstall,omitempty"`
	Requirements            rawRequirements `yaml:"requirements,omitempty" json:"requirements,omitempty"`
	Assignments             []rawAssignment `yaml:"assignments,omitempty" json:"assignments,omitempty"`
}

type rawAssignment struct {
	Intent                    string   `yaml:"intent" json:"intent"`
	TargetGroups              []string `yaml:"target_groups" json:"target_groups"`
	Notification              *bool    `yaml:"notification,omitempty" json:"notification,omitempty"`
	Deadline                  string   `yaml:"deadline,omitempty" json:"deadline,omitempty"`
	RestartGracePeriodMinutes int      `yaml:"restart_grace_period_minutes,omitempty" json:"restart_grace_period_minutes,omitempty"`
	AvailableInCompanyPortal  *bool    `yaml:"available_in_company_portal,omitempty" json:"available_in_company_portal,omitempty"`
}

type rawCompanyPortal struct {
	Description    string   `yaml:"description,omitempty" json:"description,omitempty"`
	IconPath       string   `yaml:"icon_path,omitempty" json:"icon_path,omitempty"`
	Screenshots    []string `yaml:"screenshots,omitempty" json:"screenshots,omitempty"`
	InformationURL string   `yaml:"information_url,omitempty" json:"information_url,omitempty"`
	PrivacyURL     string   `yaml:"privacy_url,omitempty" json:"privacy_url,omitempty"`
	Featured       bool     `yaml:"featured,omitempty" json:"featured,omitempty"`
	Category       string   `yaml:"category,omitempty" json:"category,omitempty"`
}

type rawTesting struct {
	SandboxEnabled               *bool `yaml:"sandbox_enabled,omitempty" json:"sandbox_enabled,omitempty"`
	VerifyInstall                *bool `yaml:"verify_install,omitempty" json:"verify_install,omitempty"`
	VerifyDetection              *bool `yaml:"verify_detection,omitempty" json:"verify_detection,omitempty"`
	VerifyShortcuts              *bool `yaml:"verify_shortcuts,omitempty" json:"verify_shortcuts,omitempty"`
	VerifyUninstall              *bool `yaml:"verify_uninstall,omitempty" json:"verify_uninstall,omitempty"`
	VerifyDetectionAfterUninstall *bool `yaml:"verify_detection_after_uninstall,omitempty" json:"verify_detection_after_uninstall,omitempty"`
}

// Load reads a profile document from disk, choosing the format by file
// extension, and returns the validated typed profile.
func Load(path string) (*ApplicationProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}
	p, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a raw configuration document, applies the default table, and
// validates the result. Any semantic defect is reported as *ValidationError.
func Parse(data []byte, format Format) (*ApplicationProfile, error) {
	var raw rawDocument
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	default:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("malformed document: %v", err)}
	}

	p, err := convertDocument(&raw)
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func convertDocument(raw *rawDocument) (*ApplicationProfile, error) {
	p := &ApplicationProfile{
		Name:        raw.Application.Name,
		Version:     raw.Application.Version,
		Publisher:   raw.Application.Publisher,
		Description: raw.Application.Description,

		DetectionMethod:       DetectionMethod(stringOr(raw.Detection.Method, string(defaults.DetectionMethod))),
		CustomDetectionScript: raw.Detection.CustomScript,

		AutoCreateShortcuts: boolOr(raw.Shortcuts.AutoCreate, defaults.AutoCreateShortcuts),

		Dependencies: raw.Dependencies,
		Supersedes:   raw.Supersedence,
	}

	for i, inst := range raw.Installers {
		p.Installers = append(p.Installers, Installer{
			Name:              inst.Name,
			File:              inst.File,
			SilentArgs:        inst.SilentArgs,
			WaitForCompletion: boolOr(inst.WaitForCompletion, defaults.WaitForCompletion),
			TimeoutSeconds:    intOr(inst.Timeout, defaults.TimeoutSeconds),
			DependsOn:         inst.DependsOn,
		})
		if inst.Name == "" {
			return nil, validationErrorf(fmt.Sprintf("installers[%d].name", i), "must not be empty")
		}
	}

	for i, rule := range raw.Detection.Rules {
		converted, err := convertRule(&rule, i)
		if err != nil {
			return nil, err
		}
		p.DetectionRules = append(p.DetectionRules, converted)
	}

	p.Uninstall = UninstallStrategy{
		Strategy:       Strategy(stringOr(raw.Uninstall.Strategy, string(defaults.UninstallStrategy))),
		Method:         stringOr(raw.Uninstall.Standard.Method, defaults.UninstallMethod),
		Command:        raw.Uninstall.Standard.Command,
		Wait:           boolOr(raw.Uninstall.Standard.Wait, defaults.UninstallWait),
		ForceEnabled:   boolOr(raw.Uninstall.Force.Enabled, defaults.ForceEnabled),
		KillProcesses:  raw.Uninstall.Force.KillProcesses,
		RemovePaths:    raw.Uninstall.Force.RemovePaths,
		RemoveRegistry: raw.Uninstall.Force.RemoveRegistry,
	}

	for _, sc := range raw.Shortcuts.Locations {
		p.Shortcuts = append(p.Shortcuts, Shortcut{
			Name:        sc.Name,
			Target:      sc.Target,
			Locations:   sc.Locations,
			Icon:        sc.Icon,
			Arguments:   sc.Arguments,
			Description: sc.Description,
		})
	}

	p.Intune = IntuneSettings{
		InstallCommand:          stringOr(raw.Intune.InstallCommand, defaults.InstallCommand),
		UninstallCommand:        stringOr(raw.Intune.UninstallCommand, defaults.UninstallCommand),
		InstallTimeMinutes:      intOr(raw.Intune.InstallTimeMinutes, defaults.InstallTimeMinutes),
		AllowAvailableUninstall: boolOr(raw.Intune.AllowAvailableUninstall, defaults.AllowAvailableUninstall),
		Requirements: IntuneRequirements{
			MinimumOS:          stringOr(raw.Intune.Requirements.MinimumOS, defaults.MinimumOS),
			Architecture:       stringOr(raw.Intune.Requirements.Architecture, defaults.Architecture),
			MinimumDiskSpaceMB: intOr(raw.Intune.Requirements.MinimumDiskSpaceMB, defaults.MinimumDiskSpaceMB),
			MinimumMemoryMB:    intOr(raw.Intune.Requirements.MinimumMemoryMB, defaults.MinimumMemoryMB),
		},
	}

	// Assignments may appear both at the top level and nested under the
	// deployment settings. Both lists apply, top-level first.
	for _, a := range append(append([]rawAssignment{}, raw.Assignments...), raw.Intune.Assignments...) {
		p.Assignments = append(p.Assignments, Assignment{
			Intent:                    Intent(a.Intent),
			TargetGroups:              a.TargetGroups,
			Notification:              boolOr(a.Notification, defaults.AssignmentNotification),
			Deadline:                  a.Deadline,
			RestartGracePeriodMinutes: a.RestartGracePeriodMinutes,
			AvailableInCompanyPortal:  boolOr(a.AvailableInCompanyPortal, defaults.AvailableInCompanyPortal),
		})
	}

	p.CompanyPortal = CompanyPortalMetadata{
		Description:    raw.CompanyPortal.Description,
		IconPath:       raw.CompanyPortal.IconPath,
		Screenshots:    raw.CompanyPortal.Screenshots,
		InformationURL: raw.CompanyPortal.InformationURL,
		PrivacyURL:     raw.CompanyPortal.PrivacyURL,
		Featured:       raw.CompanyPortal.Featured,
		Category:       stringOr(raw.CompanyPortal.Category, defaults.CompanyPortalCategory),
	}

	p.Testing = TestingConfig{
		SandboxEnabled:               boolOr(raw.Testing.SandboxEnabled, defaults.Testing.SandboxEnabled),
		VerifyInstall:                boolOr(raw.Testing.VerifyInstall, defaults.Testing.VerifyInstall),
		VerifyDetection:              boolOr(raw.Testing.VerifyDetection, defaults.Testing.VerifyDetection),
		VerifyShortcuts:              boolOr(raw.Testing.VerifyShortcuts, defaults.Testing.VerifyShortcuts),
		VerifyUninstall:              boolOr(raw.Testing.VerifyUninstall, defaults.Testing.VerifyUninstall),
		VerifyDetectionAfterUninstall: boolOr(raw.Testing.VerifyDetectionAfterUninstall, defaults.Testing.VerifyDetectionAfterUninstall),
	}

	return p, nil
}

func convertRule(raw *rawDetectionRule, index int) (DetectionRule, error) {
	field := fmt.Sprintf("detection.rules[%d]", index)
	switch raw.Type {
	case "file":
		if raw.Path == "" {
			return nil, validationErrorf(field+".path", "file rule requires a path")
		}
		return FileRule{
			Path:         raw.Path,
			CheckVersion: raw.CheckVersion,
			MinVersion:   raw.MinVersion,
		}, nil
	case "registry":
		if raw.Path == "" {
			return nil, validationErrorf(field+".path", "registry rule requires a key path")
		}
		op := Operator(stringOr(raw.Operator, string(defaults.RegistryOperator)))
		switch op {
		case OpExists, OpEquals, OpGreaterOrEqual, OpLessThan:
		default:
			return nil, validationErrorf(field+".operator", "unknown operator %q", raw.Operator)
		}
		return RegistryRule{
			Hive:      stringOr(raw.Hive, defaults.RegistryHive),
			Key:       raw.Path,
			ValueName: raw.Value,
			Operator:  op,
			Expected:  raw.Expected,
		}, nil
	case "process":
		if raw.ProcessName == "" {
			return nil, validationErrorf(field+".process_name", "process rule requires a process name")
		}
		return ProcessRule{
			Name:     raw.ProcessName,
			Required: boolOr(raw.Required, defaults.ProcessRequired),
		}, nil
	case "script":
		if raw.ScriptContent == "" {
			return nil, validationErrorf(field+".script_content", "script rule requires script content")
		}
		return ScriptRule{Content: raw.ScriptContent}, nil
	default:
		return nil, validationErrorf(field+".type", "unknown detection rule type %q", raw.Type)
	}
}

// validate checks the profile invariants that hold after defaulting.
func (p *ApplicationProfile) validate() error {
	if p.Name == "" {
		return validationErrorf("application.name", "must not be empty")
	}
	if p.Version == "" {
		return validationErrorf("application.version", "must not be empty")
	}
	if p.Publisher == "" {
		return validationErrorf("application.publisher", "must not be empty")
	}

	names := make(map[string]bool, len(p.Installers))
	for _, inst := range p.Installers {
		if names[inst.Name] {
			return validationErrorf("installers", "duplicate installer name %q", inst.Name)
		}
		names[inst.Name] = true
	}
	for _, inst := range p.Installers {
		for _, dep := range inst.DependsOn {
			if dep == inst.Name {
				return validationErrorf("installers", "installer %q depends on itself", inst.Name)
			}
			if !names[dep] {
				return validationErrorf("installers", "installer %q depends on unknown installer %q", inst.Name, dep)
			}
		}
	}
	if err := p.checkDependencyCycles(); err != nil {
		return err
	}

	switch p.DetectionMethod {
	case MethodFile, MethodRegistry, MethodComprehensive, MethodCustom:
	default:
		return validationErrorf("detection.method", "unknown detection method %q", p.DetectionMethod)
	}
	if p.DetectionMethod == MethodCustom {
		if p.CustomDetectionScript == "" {
			return validationErrorf("detection.custom_script", "custom detection requires a script")
		}
	} else if len(p.DetectionRules) == 0 {
		return validationErrorf("detection.rules", "at least one rule is required for %s detection", p.DetectionMethod)
	}

	switch p.Uninstall.Strategy {
	case StrategyStandard, StrategyForce, StrategyMulti:
	default:
		return validationErrorf("uninstall.strategy", "unknown strategy %q", p.Uninstall.Strategy)
	}

	for i, a := range p.Assignments {
		switch a.Intent {
		case IntentAvailable, IntentRequired, IntentUninstall:
		default:
			return validationErrorf(fmt.Sprintf("assignments[%d].intent", i), "unknown intent %q", a.Intent)
		}
	}

	return nil
}

// checkDependencyCycles runs a depth-first search over the depends_on graph.
func (p *ApplicationProfile) checkDependencyCycles() error {
	deps := make(map[string][]string, len(p.Installers))
	for _, inst := range p.Installers {
		deps[inst.Name] = inst.DependsOn
	}

	const (
		white = 0 // unvisited
		grey  = 1 // on the current path
		black = 2 // fully explored
	)
	state := make(map[string]int, len(deps))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case grey:
			return validationErrorf("installers", "dependency cycle involving installer %q", name)
		case black:
			return nil
		}
		state[name] = grey
		for _, dep := range deps[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = black
		return nil
	}

	for _, inst := range p.Installers {
		if err := visit(inst.Name); err != nil {
			return err
		}
	}
	return nil
}
