package bounce

import (
	"regexp"
	"strings"
)

// DefaultRecipientHeaders is the lookup order; the first header yielding an address wins.
var DefaultRecipientHeaders = []string{
	"X-MS-Exchange-Inbox-Rules-Loop",
	"To",
	"From",
	"Delivered-To",
}

// DefaultNoiseMarkers identify automated senders that are never the recipient.
var DefaultNoiseMarkers = []string{
	"no-reply@wf-ingbau.de",
	"Mail Delivery System",
}

var angleAddr = regexp.MustCompile(`(?is)<(.*?)>`)

// Resolver recovers the original recipient from raw header lines.
type Resolver struct {
	Headers      []string
	NoiseMarkers []string
}

// NewResolver returns a resolver with the default header order. A nil markers slice
// selects DefaultNoiseMarkers; an empty non-nil slice disables filtering.
func NewResolver(markers []string) *Resolver {
	if markers == nil {
		markers = DefaultNoiseMarkers
	}
	return &Resolver{
		Headers:      append([]string(nil), DefaultRecipientHeaders...),
		NoiseMarkers: append([]string(nil), markers...),
	}
}

// Resolve walks the header order and returns the first non-empty address.
func (r *Resolver) Resolve(lines []string) (string, bool) {
	for _, header := range r.Headers {
		match, ok := r.Match(lines, header)
		if !ok {
			continue
		}
		if email := extractAddress(match); email != "" {
			return email, true
		}
	}
	return "", false
}

// Match selects the last non-noise line for header and folds a tab-indented
// continuation line into its value.
func (r *Resolver) Match(lines []string, header string) (HeaderMatch, bool) {
	prefix := header + ":"
	selected := -1
	for i, line := range lines {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		if r.isNoise(line) {
			continue
		}
		selected = i
	}
	if selected < 0 {
		return HeaderMatch{}, false
	}

	value := strings.TrimRight(lines[selected], "\r\n")
	if next := selected + 1; next < len(lines) && strings.HasPrefix(lines[next], "\t") {
		value += " " + strings.TrimSpace(lines[next])
	}
	return HeaderMatch{Index: selected, Header: header, Value: value}, true
}

// isNoise reports a marker anywhere in the line, position 0 included.
func (r *Resolver) isNoise(line string) bool {
	for _, marker := range r.NoiseMarkers {
		if marker != "" && strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func extractAddress(match HeaderMatch) string {
	cut := len(match.Header) + 2
	if len(match.Value) <= cut {
		return ""
	}
	email := strings.TrimSpace(match.Value[cut:])
	if strings.Contains(email, "<") {
		if m := angleAddr.FindStringSubmatch(email); m != nil {
			email = strings.TrimSpace(m[1])
		}
	}
	return email
}
