// Package profile defines the typed application profile and its document
// parsing, defaulting, validation and serialization rules.
package profile

// DetectionMethod selects how presence of the application is verified
// after installation.
type DetectionMethod string

const (
	MethodFile          DetectionMethod = "file"
	MethodRegistry      DetectionMethod = "registry"
	MethodComprehensive DetectionMethod = "comprehensive"
	MethodCustom        DetectionMethod = "custom"
)

// Strategy selects the uninstall approach.
type Strategy string

const (
	StrategyStandard Strategy = "standard"
	StrategyForce    Strategy = "force"
	StrategyMulti    Strategy = "multi"
)

// Intent is the deployment intent of an assignment.
type Intent string

const (
	IntentAvailable Intent = "available"
	IntentRequired  Intent = "required"
	IntentUninstall Intent = "uninstall"
)

// Operator is the comparison applied by a registry detection rule.
type Operator string

const (
	OpExists         Operator = "Exists"
	OpEquals         Operator = "Equals"
	OpGreaterOrEqual Operator = "GreaterOrEqual"
	OpLessThan       Operator = "LessThan"
)

// Installer is one installable unit within a profile. Declaration order in
// the document is the install order.
type Installer struct {
	Name              string
	File              string // relative path to the installer file
	SilentArgs        string
	WaitForCompletion bool
	TimeoutSeconds    int
	DependsOn         []string
}

// DetectionRule is a sum type over the four detection kinds. Each kind
// carries only the fields relevant to it.
type DetectionRule interface {
	RuleType() string
}

// FileRule checks for a file, optionally comparing its version.
type FileRule struct {
	Path         string
	CheckVersion bool
	MinVersion   string
}

func (FileRule) RuleType() string { return "file" }

// RegistryRule checks a registry value against an expected value.
type RegistryRule struct {
	Hive      string // HKLM, HKCU, ...
	Key       string
	ValueName string
	Operator  Operator
	Expected  string
}

func (RegistryRule) RuleType() string { return "registry" }

// ProcessRule checks whether a named process is running.
type ProcessRule struct {
	Name     string
	Required bool
}

func (ProcessRule) RuleType() string { return "process" }

// ScriptRule runs an inline script; exit code zero means detected.
type ScriptRule struct {
	Content string
}

func (ScriptRule) RuleType() string { return "script" }

// UninstallStrategy describes how the application is removed. The standard
// and force sub-documents of the configuration are flattened into this one
// value object.
type UninstallStrategy struct {
	Strategy Strategy

	// Standard removal
	Method  string // registry or command
	Command string
	Wait    bool

	// Force removal
	ForceEnabled   bool
	KillProcesses  []string
	RemovePaths    []string
	RemoveRegistry []string
}

// Shortcut is a shortcut to create after installation.
type Shortcut struct {
	Name        string
	Target      string
	Locations   []string // Desktop, StartMenu
	Icon        string
	Arguments   string
	Description string
}

// Assignment is one deployment assignment.
type Assignment struct {
	Intent                    Intent
	TargetGroups              []string
	Notification              bool
	Deadline                  string // ISO-8601, empty when unset
	RestartGracePeriodMinutes int
	AvailableInCompanyPortal  bool
}

// IntuneRequirements holds the system requirements value object.
type IntuneRequirements struct {
	MinimumOS          string
	Architecture       string // x86, x64, arm64
	MinimumDiskSpaceMB int
	MinimumMemoryMB    int
}

// IntuneSettings holds the deployment command and timing settings.
type IntuneSettings struct {
	InstallCommand          string
	UninstallCommand        string
	InstallTimeMinutes      int
	AllowAvailableUninstall bool
	Requirements            IntuneRequirements
}

// CompanyPortalMetadata is the Company Portal display information.
type CompanyPortalMetadata struct {
	Description    string
	IconPath       string
	Screenshots    []string
	InformationURL string
	PrivacyURL     string
	Featured       bool
	Category       string
}

// TestingConfig holds independent verification flags.
type TestingConfig struct {
	SandboxEnabled               bool
	VerifyInstall                bool
	VerifyDetection              bool
	VerifyShortcuts              bool
	VerifyUninstall              bool
	VerifyDetectionAfterUninstall bool
}

// ApplicationProfile is the aggregate root: the complete declarative
// description of one application's packaging and deployment configuration.
// It is built once per packaging job and consumed read-only afterwards.
type ApplicationProfile struct {
	Name        string
	Version     string
	Publisher   string
	Description string

	Installers []Installer

	DetectionMethod       DetectionMethod
	DetectionRules        []DetectionRule
	CustomDetectionScript string

	Uninstall UninstallStrategy

	Shortcuts           []Shortcut
	AutoCreateShortcuts bool

	Intune       IntuneSettings
	Assignments  []Assignment
	Dependencies []string
	Supersedes   []string

	CompanyPortal CompanyPortalMetadata
	Testing       TestingConfig
}

// InstallerByName returns the installer with the given name, or nil.
func (p *ApplicationProfile) InstallerByName(name string) *Installer {
	for i := range p.Installers {
		if p.Installers[i].Name == name {
			return &p.Installers[i]
		}
	}
	return nil
}
