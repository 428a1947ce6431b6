package bounce

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// RuleSet is the on-disk form of a rule table.
//
//	replace_defaults: false
//	rules:
//	  - name: gmail over quota
//	    contains: "OverQuotaTemp"
//	    code: "452"
//	    reason: mailbox full
type RuleSet struct {
	ReplaceDefaults bool   `yaml:"replace_defaults" toml:"replace_defaults"`
	Rules           []Rule `yaml:"rules" toml:"rules"`
}

// LoadRules reads a rule table from a .yaml/.yml or .toml file.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rules %s: %w", path, err)
	}
	var set RuleSet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &set); err != nil {
			return RuleSet{}, fmt.Errorf("decode rules %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &set); err != nil {
			return RuleSet{}, fmt.Errorf("decode rules %s: %w", path, err)
		}
	default:
		return RuleSet{}, fmt.Errorf("rules %s: unsupported format %q", path, filepath.Ext(path))
	}
	return set, nil
}

// NewClassifierFromFile builds a classifier whose file rules are evaluated before
// the default table, or instead of it when the file sets replace_defaults.
// An empty path yields the default classifier.
func NewClassifierFromFile(path string) (*Classifier, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultClassifier(), nil
	}
	set, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	rules := set.Rules
	if !set.ReplaceDefaults {
		rules = append(rules, DefaultRules()...)
	}
	return NewClassifier(rules)
}

// Codes only count where the server put them: at the start of the diagnostic text,
// after an optional type prefix such as "smtp;" or "X-Postfix;". Numbers later in
// the text (queue IDs, "retry after 450 seconds") are ignored. The trailing class
// keeps "550" from matching inside "5.5.0" or "15501".
const (
	codePrefix   = `^\s*(?:[\w-]+;\s*)?`
	codeEnd      = `(?:[^0-9.]|$)`
	replyPattern = codePrefix + `%s` + codeEnd
	// An enhanced status code may follow the basic reply code: "550-5.1.1".
	statusPattern = codePrefix + `(?:[2-5][0-9]{2}[\s-]+)?%s` + codeEnd
)

func replyCode(code, reason string) Rule {
	return Rule{
		Name:    "reply " + code,
		Pattern: fmt.Sprintf(replyPattern, code),
		Code:    code,
		Reason:  reason,
	}
}

func statusCode(code, reason string) Rule {
	return Rule{
		Name:    "status " + code,
		Pattern: fmt.Sprintf(statusPattern, strings.ReplaceAll(code, ".", `\.`)),
		Code:    code,
		Reason:  reason,
	}
}

func phrase(text, code, reason string) Rule {
	return Rule{
		Name:     "text " + text,
		Contains: text,
		Code:     code,
		Reason:   reason,
	}
}

// DefaultRules is the seed table: SMTP reply codes (RFC 5321) first, then enhanced
// status codes (RFC 3463), then vendor phrasing that carries no code at all.
func DefaultRules() []Rule {
	return []Rule{
		replyCode("421", "service not available"),
		replyCode("450", "mailbox temporarily unavailable"),
		replyCode("451", "local error in processing"),
		replyCode("452", "insufficient system storage"),
		replyCode("500", "command syntax error"),
		replyCode("501", "syntax error in parameters"),
		replyCode("502", "command not implemented"),
		replyCode("503", "bad sequence of commands"),
		replyCode("504", "command parameter not implemented"),
		replyCode("550", "mailbox unavailable"),
		replyCode("551", "user not local"),
		replyCode("552", "exceeded storage allocation"),
		replyCode("553", "mailbox name not allowed"),
		replyCode("554", "transaction failed"),

		statusCode("5.0.0", "address does not exist"),
		statusCode("5.1.0", "other address status"),
		statusCode("5.1.1", "bad destination mailbox address"),
		statusCode("5.1.2", "bad destination system address"),
		statusCode("5.1.3", "bad destination mailbox address syntax"),
		statusCode("5.1.4", "destination mailbox address ambiguous"),
		statusCode("5.1.6", "mailbox has moved"),
		statusCode("5.2.0", "other or undefined mailbox status"),
		statusCode("5.2.1", "mailbox disabled"),
		statusCode("5.2.2", "mailbox full"),
		statusCode("5.2.3", "message length exceeds administrative limit"),
		statusCode("5.3.0", "other or undefined mail system status"),
		statusCode("5.3.4", "message too big for system"),
		statusCode("5.4.1", "no answer from host"),
		statusCode("5.4.4", "unable to route"),
		statusCode("5.4.6", "routing loop detected"),
		statusCode("5.4.7", "delivery time expired"),
		statusCode("5.5.0", "other or undefined protocol status"),
		statusCode("5.7.0", "other or undefined security status"),
		statusCode("5.7.1", "delivery not authorized, message refused"),
		statusCode("4.2.2", "mailbox full"),
		statusCode("4.4.1", "no answer from host"),
		statusCode("4.4.7", "delivery time expired"),
		statusCode("4.7.1", "delivery temporarily not authorized"),

		phrase("user unknown", "550", "user unknown"),
		phrase("no such user", "550", "user unknown"),
		phrase("does not exist", "550", "mailbox does not exist"),
		phrase("over quota", "552", "mailbox full"),
		phrase("quota exceeded", "552", "mailbox full"),
		phrase("mailbox full", "552", "mailbox full"),
		phrase("spam", "554", "message rejected as spam"),
		phrase("blacklisted", "554", "sender blocked"),
		phrase("timed out", "421", "connection timed out"),
	}
}
