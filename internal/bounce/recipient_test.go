package bounce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRecipient(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		want   string
		wantOK bool
	}{
		{
			name:   "noise To falls through to From",
			lines:  []string{"To: Mail Delivery System <mailer@x.com>", "From: <user@real.com>"},
			want:   "user@real.com",
			wantOK: true,
		},
		{
			name: "exchange loop header has priority",
			lines: []string{
				"To: other@x.com",
				"X-MS-Exchange-Inbox-Rules-Loop: loop@corp.com",
			},
			want:   "loop@corp.com",
			wantOK: true,
		},
		{
			name:   "last match wins",
			lines:  []string{"To: first@x.com", "Subject: hi", "To: second@x.com"},
			want:   "second@x.com",
			wantOK: true,
		},
		{
			name:   "bare address without brackets",
			lines:  []string{"To:   plain@x.com  "},
			want:   "plain@x.com",
			wantOK: true,
		},
		{
			name:   "display name with brackets",
			lines:  []string{`To: "Jane Doe" <Jane@Example.com>`},
			want:   "Jane@Example.com",
			wantOK: true,
		},
		{
			name:   "folded continuation",
			lines:  []string{"To: \"Very Long Display Name\"", "\t<folded@x.com>", "Subject: x"},
			want:   "folded@x.com",
			wantOK: true,
		},
		{
			name:   "continuation without brackets does not leak a tab",
			lines:  []string{"To: first-part", "\tsecond-part", "Subject: x"},
			want:   "first-part second-part",
			wantOK: true,
		},
		{
			name:   "space continuation is not folded",
			lines:  []string{"To: a@x.com", " <b@x.com>"},
			want:   "a@x.com",
			wantOK: true,
		},
		{
			name:   "header match is case sensitive",
			lines:  []string{"to: lower@x.com", "delivered-to: lower2@x.com"},
			wantOK: false,
		},
		{
			name:   "empty value falls through",
			lines:  []string{"To: ", "From: sender@x.com"},
			want:   "sender@x.com",
			wantOK: true,
		},
		{
			name:   "delivered-to last resort",
			lines:  []string{"From: MAILER-DAEMON (Mail Delivery System)", "Delivered-To: bounces@x.com"},
			want:   "bounces@x.com",
			wantOK: true,
		},
		{
			name:   "no headers",
			lines:  []string{"Subject: nothing here"},
			wantOK: false,
		},
		{
			name:   "only noise",
			lines:  []string{"From: no-reply@wf-ingbau.de"},
			wantOK: false,
		},
	}

	r := NewResolver(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.lines)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRecipientNoiseMarkerAtLineStart(t *testing.T) {
	// A marker at offset 0 filters the line like any other position.
	r := NewResolver([]string{"To: Bounce Robot"})
	got, ok := r.Resolve([]string{"To: Bounce Robot <robot@x.com>", "From: real@x.com"})
	assert.True(t, ok)
	assert.Equal(t, "real@x.com", got)
}

func TestResolveRecipientNoiseKeepsRealMatch(t *testing.T) {
	r := NewResolver(nil)
	lines := []string{
		"To: real@x.com",
		"To: Mail Delivery System <mailer-daemon@x.com>",
	}
	got, ok := r.Resolve(lines)
	assert.True(t, ok)
	assert.Equal(t, "real@x.com", got)
}

func TestResolveRecipientFilteringDisabled(t *testing.T) {
	r := NewResolver([]string{})
	got, ok := r.Resolve([]string{"To: Mail Delivery System <mailer@x.com>"})
	assert.True(t, ok)
	assert.Equal(t, "mailer@x.com", got)
}

func TestResolveRecipientIdempotent(t *testing.T) {
	r := NewResolver(nil)
	lines := []string{"To: \"Name\"", "\t<a@x.com>"}
	first, _ := r.Resolve(lines)
	second, _ := r.Resolve(lines)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"To: \"Name\"", "\t<a@x.com>"}, lines)
}

func TestResolverMatch(t *testing.T) {
	r := NewResolver(nil)
	m, ok := r.Match([]string{"Subject: a", "To: x@y.com\r\n", "\tcontinued"}, "To")
	assert.True(t, ok)
	assert.Equal(t, HeaderMatch{Index: 1, Header: "To", Value: "To: x@y.com continued"}, m)
}
