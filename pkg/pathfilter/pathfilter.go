// Package pathfilter builds exclusion predicates over normalized store paths.
// A filter answers one question per path: should this entry be skipped?
package pathfilter

import (
	"strings"

	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// Filter reports whether a normalized path should be excluded from an
// operation. The dir flag carries the entry kind for rules that only apply
// to directories.
type Filter func(path string, dir bool) bool

// None excludes nothing.
func None(string, bool) bool { return false }

// FromRules compiles ignore rules into a Filter. A rule that matches a
// directory excludes the whole subtree beneath it. Rules are anchored
// patterns as produced by the ignore package: "/" separated segments where
// "*" and "?" match within a segment and "**" spans any number of segments.
func FromRules(rules []string) Filter {
	split := make([][]string, 0, len(rules))
	for _, r := range rules {
		split = append(split, splitPattern(r))
	}
	return func(path string, dir bool) bool {
		segs := splitPattern(util.NormalizePath(path))
		for _, pat := range split {
			if matchSegments(pat, segs) {
				return true
			}
		}
		return false
	}
}

// FromTargets compiles an allow-list of paths into a Filter. A path passes
// when it is one of the targets, lives beneath a target, or is an ancestor
// of a target. Ancestors must pass so a walk can descend far enough to reach
// the targets at all.
func FromTargets(targets []string) Filter {
	normalized := make([]string, 0, len(targets))
	for _, t := range targets {
		normalized = append(normalized, util.NormalizePath(t))
	}
	return func(path string, dir bool) bool {
		p := util.NormalizePath(path)
		for _, t := range normalized {
			if p == t || util.IsPathWithin(t, p) || util.IsPathWithin(p, t) {
				return false
			}
		}
		return true
	}
}

// Any combines filters so a path excluded by any of them is excluded.
func Any(filters ...Filter) Filter {
	return func(path string, dir bool) bool {
		for _, f := range filters {
			if f != nil && f(path, dir) {
				return true
			}
		}
		return false
	}
}

func splitPattern(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// matchSegments matches a segmented pattern against a segmented path. A
// fully consumed pattern with path segments left over means the pattern
// matched an ancestor directory, which counts as a match so the subtree is
// excluded as a unit.
func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return true
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], segs) {
			return true
		}
		return len(segs) > 0 && matchSegments(pattern, segs[1:])
	}
	if len(segs) == 0 {
		return false
	}
	if !matchSegment(pattern[0], segs[0]) {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}

// matchSegment matches one pattern segment against one path segment.
// "*" matches any run of characters and "?" matches exactly one; neither
// crosses a path separator because segments are matched individually.
func matchSegment(pattern, name string) bool {
	pi, ni := 0, 0
	star, starN := -1, 0
	for ni < len(name) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == name[ni]):
			pi++
			ni++
		case pi < len(pattern) && pattern[pi] == '*':
			star, starN = pi, ni
			pi++
		case star >= 0:
			starN++
			pi, ni = star+1, starN
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
