package pathfilter

import "testing"

func TestFromRules(t *testing.T) {
	filter := FromRules([]string{"/**/*.tmp", "/**/node_modules", "/build", "/.git", "/docs/*.md"})

	tests := []struct {
		path    string
		dir     bool
		exclude bool
	}{
		{"/notes.tmp", false, true},
		{"/a/b/scratch.tmp", false, true},
		{"/notes.tmp.txt", false, false},
		{"/node_modules", true, true},
		{"/web/app/node_modules", true, true},
		{"/web/app/node_modules/left-pad/index.js", false, true},
		{"/build", true, true},
		{"/build/out.bin", false, true},
		{"/src/build", true, false},
		{"/.git", true, true},
		{"/.git/HEAD", false, true},
		{"/.gitignore", false, false},
		{"/docs/readme.md", false, true},
		{"/docs/sub/readme.md", false, false},
		{"/src/main.go", false, false},
	}
	for _, tt := range tests {
		if got := filter(tt.path, tt.dir); got != tt.exclude {
			t.Errorf("filter(%q) = %v, want %v", tt.path, got, tt.exclude)
		}
	}
}

func TestFromRulesQuestionMark(t *testing.T) {
	filter := FromRules([]string{"/**/v?.log"})
	if !filter("/logs/v1.log", false) {
		t.Error("expected /logs/v1.log to be excluded")
	}
	if filter("/logs/v12.log", false) {
		t.Error("expected /logs/v12.log to be included")
	}
}

func TestFromTargets(t *testing.T) {
	filter := FromTargets([]string{"/src/app/main.go", "/assets"})

	tests := []struct {
		path    string
		exclude bool
	}{
		{"/", false},
		{"/src", false},
		{"/src/app", false},
		{"/src/app/main.go", false},
		{"/assets", false},
		{"/assets/logo.png", false},
		{"/src/app/other.go", true},
		{"/src/lib", true},
		{"/readme.md", true},
	}
	for _, tt := range tests {
		if got := filter(tt.path, false); got != tt.exclude {
			t.Errorf("filter(%q) = %v, want %v", tt.path, got, tt.exclude)
		}
	}
}

func TestAny(t *testing.T) {
	a := FromRules([]string{"/**/*.tmp"})
	b := FromRules([]string{"/build"})
	combined := Any(a, b, nil)

	if !combined("/x.tmp", false) {
		t.Error("expected first filter to exclude /x.tmp")
	}
	if !combined("/build/a", false) {
		t.Error("expected second filter to exclude /build/a")
	}
	if combined("/src/main.go", false) {
		t.Error("expected /src/main.go to pass")
	}
}

func TestNone(t *testing.T) {
	if None("/anything", true) {
		t.Error("None must never exclude")
	}
}
