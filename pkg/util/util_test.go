package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Already normalized", input: "/a/b.txt", expected: "/a/b.txt"},
		{name: "Missing leading slash", input: "a/b.txt", expected: "/a/b.txt"},
		{name: "Trailing slash", input: "/a/b/", expected: "/a/b"},
		{name: "Dot", input: ".", expected: "/"},
		{name: "Empty", input: "", expected: "/"},
		{name: "Redundant segments", input: "/a//b/../c", expected: "/a/c"},
		{name: "Backslashes", input: `a\b\c.txt`, expected: "/a/b/c.txt"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizePath(tc.input); got != tc.expected {
				t.Errorf("NormalizePath(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestParentPath(t *testing.T) {
	if got := ParentPath("/a/b/c"); got != "/a/b" {
		t.Errorf("ParentPath(/a/b/c) = %q; want /a/b", got)
	}
	if got := ParentPath("/a"); got != "/" {
		t.Errorf("ParentPath(/a) = %q; want /", got)
	}
	if got := ParentPath("/"); got != "/" {
		t.Errorf("ParentPath(/) = %q; want /", got)
	}
}

func TestIsPathWithin(t *testing.T) {
	testCases := []struct {
		parent, child string
		expected      bool
	}{
		{"/a/b", "/a/b", true},
		{"/a/b", "/a/b/c", true},
		{"/a/b", "/a/bc", false},
		{"/a/b", "/a", false},
		{"/", "/anything", true},
	}

	for _, tc := range testCases {
		if got := IsPathWithin(tc.parent, tc.child); got != tc.expected {
			t.Errorf("IsPathWithin(%q, %q) = %v; want %v", tc.parent, tc.child, got, tc.expected)
		}
	}
}

func TestWithUserWritePermission(t *testing.T) {
	testCases := []struct {
		name     string
		input    os.FileMode
		expected os.FileMode
	}{
		{name: "Read-only permission", input: 0444, expected: 0644},
		{name: "Already writable", input: 0755, expected: 0755},
		{name: "No permissions", input: 0000, expected: 0200},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithUserWritePermission(tc.input); got != tc.expected {
				t.Errorf("WithUserWritePermission(%o) = %o; want %o", tc.input, got, tc.expected)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory available: %v", err)
	}

	got, err := ExpandPath("~/sync")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	if got != filepath.Join(home, "sync") {
		t.Errorf("ExpandPath(~/sync) = %q; want %q", got, filepath.Join(home, "sync"))
	}

	got, err = ExpandPath("/absolute/path")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	if got != "/absolute/path" {
		t.Errorf("ExpandPath should leave non-tilde paths untouched, got %q", got)
	}
}

func TestInvertMap(t *testing.T) {
	m := map[int]string{1: "one", 2: "two"}
	inv := InvertMap(m)
	if len(inv) != 2 || inv["one"] != 1 || inv["two"] != 2 {
		t.Errorf("InvertMap produced unexpected result: %v", inv)
	}
}
