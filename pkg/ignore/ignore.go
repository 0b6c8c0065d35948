// Package ignore loads and normalizes the ignore ruleset that filters paths
// out of a sync. Rules come from the folder's own ignore file when present,
// or from the process-wide default ruleset otherwise.
package ignore

import (
	"strings"

	"github.com/pixelgardenlabs/arcmirror/pkg/store"
)

// RuleFilePath is the reserved ignore-file location inside a store.
const RuleFilePath = "/.arcignore"

// fixedRules are always excluded regardless of user rules: the
// version-control directory and the archive-metadata directory must never
// be synced.
var fixedRules = []string{"/.git", "/.arc"}

// RuleSet is an ordered sequence of normalized glob patterns. Every pattern
// is anchored: unanchored user rules are prefixed with "**/" so they match
// at any depth, mirroring common ignore-file semantics.
type RuleSet []string

// Load reads the ignore file from a store and compiles it into a RuleSet.
// A missing or empty rule file is the normal case, not a failure; the
// defaultRules text is used instead. The result is recomputed on every call
// so an edit to the rule file can never be served stale.
func Load(s store.Store, defaultRules string) RuleSet {
	text := defaultRules
	if data, err := s.ReadFile(RuleFilePath); err == nil && len(strings.TrimSpace(string(data))) > 0 {
		text = string(data)
	}
	return Compile(text)
}

// Compile normalizes raw ignore-rule text into a RuleSet.
func Compile(text string) RuleSet {
	var rules RuleSet
	for _, line := range strings.Split(text, "\n") {
		rule := strings.TrimSpace(line)
		if rule == "" || strings.HasPrefix(rule, "#") {
			continue
		}
		rules = append(rules, normalizeRule(rule))
	}
	return append(rules, fixedRules...)
}

// normalizeRule anchors a rule. A rule with a leading "/" matches only at
// its root-relative location; anything else matches at any directory depth.
func normalizeRule(rule string) string {
	if strings.HasPrefix(rule, "/") {
		return rule
	}
	if strings.HasPrefix(rule, "**/") {
		return "/" + rule
	}
	return "/**/" + rule
}
