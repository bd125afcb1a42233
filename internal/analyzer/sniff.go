package analyzer

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	peparser "github.com/saferwall/pe"
)

// installer signature substrings, checked against the file head in order
var installerSignatures = []struct {
	marker []byte
	kind   string
}{
	{[]byte("Nullsoft"), "NSIS"},
	{[]byte("NSIS"), "NSIS"},
	{[]byte("Inno Setup"), "Inno Setup"},
	{[]byte("InnoSetup"), "Inno Setup"},
	{[]byte("Wise Installation"), "Wise Installer"},
	{[]byte("InstallShield"), "InstallShield"},
}

const sniffSize = 8192

// DetectInstallerType inspects the first few KB of a file for known
// installer framework signatures. Plain PE executables are additionally
// checked for MSI runtime imports.
func DetectInstallerType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("sniffing %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, sniffSize)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return "", fmt.Errorf("sniffing %s: %w", path, err)
	}
	header = header[:n]

	for _, sig := range installerSignatures {
		if bytes.Contains(header, sig.marker) {
			return sig.kind, nil
		}
	}

	if bytes.HasPrefix(header, []byte("MZ")) && bytes.Contains(header, []byte("This program cannot be run in DOS mode")) {
		if importsMSI(path) {
			return "MSI-based", nil
		}
		return "PE Executable", nil
	}

	return "Unknown", nil
}

// importsMSI reports whether the binary imports an MSI runtime DLL. Parse
// failures are treated as "no".
func importsMSI(path string) bool {
	pe, err := peparser.New(path, &peparser.Options{})
	if err != nil {
		return false
	}
	defer pe.Close()

	if err := pe.Parse(); err != nil {
		return false
	}
	for _, imp := range pe.Imports {
		if strings.Contains(strings.ToLower(imp.Name), "msi") {
			return true
		}
	}
	return false
}
