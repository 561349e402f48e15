package threatintel

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// SignatureRule is one operator-authored detection rule.
type SignatureRule struct {
	Name     string `yaml:"name"`
	Severity string `yaml:"severity"`
	Pattern  string `yaml:"pattern"`
}

type compiledRule struct {
	name     string
	severity string
	re       *regexp.Regexp
}

// RegexMatcher is a SignatureMatcher over a compiled regex rule set. It
// stands in for a full YARA engine behind the same interface.
type RegexMatcher struct {
	rules []compiledRule
}

// NewRegexMatcher compiles a rule set. A rule that fails to compile fails the
// whole load; a half-loaded rule set silently weakening detection is worse
// than a startup error.
func NewRegexMatcher(rules []SignatureRule) (*RegexMatcher, error) {
	m := &RegexMatcher{}
	for _, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("signature rule %q: %w", r.Name, err)
		}
		m.rules = append(m.rules, compiledRule{name: r.Name, severity: r.Severity, re: re})
	}
	return m, nil
}

// LoadSignatureRules reads a YAML rule file and compiles it.
func LoadSignatureRules(path string) (*RegexMatcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Rules []SignatureRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("signature rule file %v: %w", path, err)
	}
	return NewRegexMatcher(doc.Rules)
}

func (m *RegexMatcher) MatchSignatures(ctx context.Context, content string) ([]SignatureMatch, error) {
	var matches []SignatureMatch
	for _, r := range m.rules {
		if loc := r.re.FindStringIndex(content); loc != nil {
			matches = append(matches, SignatureMatch{
				RuleName:    r.name,
				Severity:    r.severity,
				MatchedText: content[loc[0]:loc[1]],
			})
		}
	}
	return matches, nil
}
