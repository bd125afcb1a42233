package folderscan

import (
	"fmt"
	"strings"
)

// GenerateDraft renders a draft configuration document from an analysis
// result. The draft is advisory scaffolding with TODO placeholders for
// everything the heuristics cannot infer; it is not a validated profile.
func GenerateDraft(result *Result, appName string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "application:\n")
	fmt.Fprintf(&b, "  name: %q\n", appName)
	fmt.Fprintf(&b, "  version: \"1.0.0\"  # TODO: Update version\n")
	fmt.Fprintf(&b, "  publisher: \"Unknown\"  # TODO: Update publisher\n")
	fmt.Fprintf(&b, "\n")

	fmt.Fprintf(&b, "installers:\n")

	// Dependencies first, so the document order matches the install order.
	for _, dep := range result.Dependencies {
		fmt.Fprintf(&b, "  - name: %q\n", dep.Name)
		fmt.Fprintf(&b, "    file: %q\n", dep.Name)
		fmt.Fprintf(&b, "    silent_args: \"\"  # TODO: Add silent install arguments\n")
		fmt.Fprintf(&b, "\n")
	}

	if result.MainInstaller != nil {
		fmt.Fprintf(&b, "  - name: %q\n", result.MainInstaller.Name)
		fmt.Fprintf(&b, "    file: %q\n", result.MainInstaller.Name)
		fmt.Fprintf(&b, "    silent_args: \"\"  # TODO: Add silent install arguments\n")
		if len(result.Dependencies) > 0 {
			names := make([]string, len(result.Dependencies))
			for i, dep := range result.Dependencies {
				names[i] = fmt.Sprintf("%q", dep.Name)
			}
			fmt.Fprintf(&b, "    depends_on: [%s]\n", strings.Join(names, ", "))
		}
		fmt.Fprintf(&b, "\n")
	}

	if len(result.StandaloneExecutables) > 0 {
		fmt.Fprintf(&b, "post_install:\n")
		fmt.Fprintf(&b, "  file_replacements:\n")
		for _, exe := range result.StandaloneExecutables {
			fmt.Fprintf(&b, "    - source: %q\n", exe.Name)
			fmt.Fprintf(&b, "      destination: \"\"  # TODO: Specify destination path\n")
			fmt.Fprintf(&b, "      backup: true\n")
		}
		fmt.Fprintf(&b, "\n")
	}

	if len(result.ConfigFiles) > 0 {
		if len(result.StandaloneExecutables) == 0 {
			fmt.Fprintf(&b, "post_install:\n")
		}
		fmt.Fprintf(&b, "  file_copies:\n")
		for _, cfg := range result.ConfigFiles {
			fmt.Fprintf(&b, "    - source: %q\n", cfg.Name)
			fmt.Fprintf(&b, "      destination: \"\"  # TODO: Specify destination path\n")
		}
		fmt.Fprintf(&b, "\n")
	}

	return b.String()
}
