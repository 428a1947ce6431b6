package bounce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupDiagnosticCode(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		want   string
		wantOK bool
	}{
		{
			name:   "single line",
			lines:  []string{"Final-Recipient: rfc822; a@b.com", "Diagnostic-Code: smtp;550 5.1.1 user unknown"},
			want:   "smtp;550 5.1.1 user unknown",
			wantOK: true,
		},
		{
			name:   "none",
			lines:  []string{"Subject: Out of office", "From: someone@x.com"},
			wantOK: false,
		},
		{
			name:   "two lines are ambiguous",
			lines:  []string{"Diagnostic-Code: smtp;550 a", "Diagnostic-Code: smtp;552 b"},
			wantOK: false,
		},
		{
			name:   "case sensitive",
			lines:  []string{"diagnostic-code: smtp;550 user unknown"},
			wantOK: false,
		},
		{
			name:   "anchored at line start",
			lines:  []string{"  Diagnostic-Code: smtp;550 user unknown", "X-Diagnostic-Code: smtp;550"},
			wantOK: false,
		},
		{
			name:   "bare prefix",
			lines:  []string{"Diagnostic-Code:"},
			want:   "",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LookupDiagnosticCode(tt.lines)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindDiagnosticLines(t *testing.T) {
	lines := []string{"Diagnostic-Code: one", "Status: 5.0.0", "Diagnostic-Code: two"}
	assert.Equal(t, []string{"Diagnostic-Code: one", "Diagnostic-Code: two"}, FindDiagnosticLines(lines))
	assert.Empty(t, FindDiagnosticLines(nil))
}
