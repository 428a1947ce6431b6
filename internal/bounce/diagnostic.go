package bounce

import "strings"

const diagnosticPrefix = "Diagnostic-Code:"

// diagnosticStrip is the fixed prefix removed from the authoritative line.
const diagnosticStrip = len("Diagnostic-Code: ")

// FindDiagnosticLines returns every line that starts with "Diagnostic-Code:".
func FindDiagnosticLines(lines []string) []string {
	var matches []string
	for _, line := range lines {
		if strings.HasPrefix(line, diagnosticPrefix) {
			matches = append(matches, line)
		}
	}
	return matches
}

// LookupDiagnosticCode returns the diagnostic code when exactly one Diagnostic-Code
// line is present. Zero or several lines report false.
func LookupDiagnosticCode(lines []string) (string, bool) {
	matches := FindDiagnosticLines(lines)
	if len(matches) != 1 {
		return "", false
	}
	line := matches[0]
	if len(line) <= diagnosticStrip {
		return "", true
	}
	return line[diagnosticStrip:], true
}
