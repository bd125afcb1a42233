package profile

// defaults is the single table of default values applied while converting a
// raw document into the typed profile. Every optional field that is absent
// from the document resolves against this table, nowhere else.
var defaults = struct {
	WaitForCompletion bool
	TimeoutSeconds    int

	DetectionMethod  DetectionMethod
	RegistryHive     string
	RegistryOperator Operator
	ProcessRequired  bool

	UninstallStrategy Strategy
	UninstallMethod   string
	UninstallWait     bool
	ForceEnabled      bool

	AutoCreateShortcuts bool

	InstallCommand          string
	UninstallCommand        string
	InstallTimeMinutes      int
	AllowAvailableUninstall bool

	MinimumOS          string
	Architecture       string
	MinimumDiskSpaceMB int
	MinimumMemoryMB    int

	AssignmentNotification   bool
	AvailableInCompanyPortal bool

	CompanyPortalCategory string

	Testing TestingConfig
}{
	WaitForCompletion: true,
	TimeoutSeconds:    600,

	DetectionMethod:  MethodComprehensive,
	RegistryHive:     "HKLM",
	RegistryOperator: OpExists,
	ProcessRequired:  true,

	UninstallStrategy: StrategyMulti,
	UninstallMethod:   "registry",
	UninstallWait:     true,
	ForceEnabled:      true,

	AutoCreateShortcuts: true,

	InstallCommand:          "powershell.exe -ExecutionPolicy Bypass -File install.ps1",
	UninstallCommand:        "powershell.exe -ExecutionPolicy Bypass -File uninstall.ps1",
	InstallTimeMinutes:      15,
	AllowAvailableUninstall: true,

	MinimumOS:          "1809",
	Architecture:       "x64",
	MinimumDiskSpaceMB: 100,
	MinimumMemoryMB:    512,

	AssignmentNotification:   true,
	AvailableInCompanyPortal: true,

	CompanyPortalCategory: "Productivity",

	Testing: TestingConfig{
		SandboxEnabled:               true,
		VerifyInstall:                true,
		VerifyDetection:              true,
		VerifyShortcuts:              true,
		VerifyUninstall:              true,
		VerifyDetectionAfterUninstall: true,
	},
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// intOr resolves an optional numeric field. Absent and zero are distinct;
// an explicit zero in the document is kept.
func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }
