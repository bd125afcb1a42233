package profile

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Serialize renders the profile back into a configuration document. The
// mapping is the structural inverse of Parse; defaulted values are written
// out explicitly so the document is self-describing.
func Serialize(p *ApplicationProfile, format Format) ([]byte, error) {
	doc := buildDocument(p)
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding profile as JSON: %w", err)
		}
		return append(data, '\n'), nil
	default:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encoding profile as YAML: %w", err)
		}
		return data, nil
	}
}

// Save writes the profile to disk, choosing the format by file extension.
func Save(p *ApplicationProfile, path string) error {
	data, err := Serialize(p, FormatForPath(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing profile %s: %w", path, err)
	}
	return nil
}

func buildDocument(p *ApplicationProfile) *rawDocument {
	doc := &rawDocument{
		Application: rawApplication{
			Name:        p.Name,
			Version:     p.Version,
			Publisher:   p.Publisher,
			Description: p.Description,
		},
		Detection: rawDetection{
			Method:       string(p.DetectionMethod),
			CustomScript: p.CustomDetectionScript,
		},
		Uninstall: rawUninstall{
			Strategy: string(p.Uninstall.Strategy),
			Standard: rawStandardUninstall{
				Method:  p.Uninstall.Method,
				Command: p.Uninstall.Command,
				Wait:    boolPtr(p.Uninstall.Wait),
			},
			Force: rawForceUninstall{
				Enabled:        boolPtr(p.Uninstall.ForceEnabled),
				KillProcesses:  p.Uninstall.KillProcesses,
				RemovePaths:    p.Uninstall.RemovePaths,
				RemoveRegistry: p.Uninstall.RemoveRegistry,
			},
		},
		Shortcuts: rawShortcuts{
			AutoCreate: boolPtr(p.AutoCreateShortcuts),
		},
		Intune: rawIntune{
			InstallCommand:          p.Intune.InstallCommand,
			UninstallCommand:        p.Intune.UninstallCommand,
			InstallTimeMinutes:      intPtr(p.Intune.InstallTimeMinutes),
			AllowAvailableUninstall: boolPtr(p.Intune.AllowAvailableUninstall),
			Requirements: rawRequirements{
				MinimumOS:          p.Intune.Requirements.MinimumOS,
				Architecture:       p.Intune.Requirements.Architecture,
				MinimumDiskSpaceMB: intPtr(p.Intune.Requirements.MinimumDiskSpaceMB),
				MinimumMemoryMB:    intPtr(p.Intune.Requirements.MinimumMemoryMB),
			},
		},
		Dependencies: p.Dependencies,
		Supersedence: p.Supersedes,
		CompanyPortal: rawCompanyPortal{
			Description:    p.CompanyPortal.Description,
			IconPath:       p.CompanyPortal.IconPath,
			Screenshots:    p.CompanyPortal.Screenshots,
			InformationURL: p.CompanyPortal.InformationURL,
			PrivacyURL:     p.CompanyPortal.PrivacyURL,
			Featured:       p.CompanyPortal.Featured,
			Category:       p.CompanyPortal.Category,
		},
		Testing: rawTesting{
			SandboxEnabled:               boolPtr(p.Testing.SandboxEnabled),
			VerifyInstall:                boolPtr(p.Testing.VerifyInstall),
			VerifyDetection:              boolPtr(p.Testing.VerifyDetection),
			VerifyShortcuts:              boolPtr(p.Testing.VerifyShortcuts),
			VerifyUninstall:              boolPtr(p.Testing.VerifyUninstall),
			VerifyDetectionAfterUninstall: boolPtr(p.Testing.VerifyDetectionAfterUninstall),
		},
	}

	for _, inst := range p.Installers {
		doc.Installers = append(doc.Installers, rawInstaller{
			Name:              inst.Name,
			File:              inst.File,
			SilentArgs:        inst.SilentArgs,
			WaitForCompletion: boolPtr(inst.WaitForCompletion),
			Timeout:           intPtr(inst.TimeoutSeconds),
			DependsOn:         inst.DependsOn,
		})
	}

	for _, rule := range p.DetectionRules {
		doc.Detection.Rules = append(doc.Detection.Rules, buildRule(rule))
	}

	for _, sc := range p.Shortcuts {
		doc.Shortcuts.Locations = append(doc.Shortcuts.Locations, rawShortcut{
			Name:        sc.Name,
			Target:      sc.Target,
			Locations:   sc.Locations,
			Icon:        sc.Icon,
			Arguments:   sc.Arguments,
			Description: sc.Description,
		})
	}

	// All assignments serialize to the top-level list; the nested list is an
	// accepted input location only.
	for _, a := range p.Assignments {
		doc.Assignments = append(doc.Assignments, rawAssignment{
			Intent:                    string(a.Intent),
			TargetGroups:              a.TargetGroups,
			Notification:              boolPtr(a.Notification),
			Deadline:                  a.Deadline,
			RestartGracePeriodMinutes: a.RestartGracePeriodMinutes,
			AvailableInCompanyPortal:  boolPtr(a.AvailableInCompanyPortal),
		})
	}

	return doc
}

func buildRule(rule DetectionRule) rawDetectionRule {
	switch r := rule.(type) {
	case FileRule:
		return rawDetectionRule{
			Type:         r.RuleType(),
			Path:         r.Path,
			CheckVersion: r.CheckVersion,
			MinVersion:   r.MinVersion,
		}
	case RegistryRule:
		return rawDetectionRule{
			Type:     r.RuleType(),
			Hive:     r.Hive,
			Path:     r.Key,
			Value:    r.ValueName,
			Operator: string(r.Operator),
			Expected: r.Expected,
		}
	case ProcessRule:
		return rawDetectionRule{
			Type:        r.RuleType(),
			ProcessName: r.Name,
			Required:    boolPtr(r.Required),
		}
	case ScriptRule:
		return rawDetectionRule{
			Type:          r.RuleType(),
			ScriptContent: r.Content,
		}
	default:
		return rawDetectionRule{Type: rule.RuleType()}
	}
}
