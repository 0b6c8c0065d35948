package ignore

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pixelgardenlabs/arcmirror/pkg/store"
)

func newTestLocal(t *testing.T) *store.Local {
	t.Helper()
	s, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return s
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		text string
		want RuleSet
	}{
		{
			name: "empty text yields only fixed rules",
			text: "",
			want: RuleSet{"/.git", "/.arc"},
		},
		{
			name: "unanchored rules match at any depth",
			text: "*.tmp\nnode_modules\n",
			want: RuleSet{"/**/*.tmp", "/**/node_modules", "/.git", "/.arc"},
		},
		{
			name: "anchored rules stay anchored",
			text: "/build\n/out/cache\n",
			want: RuleSet{"/build", "/out/cache", "/.git", "/.arc"},
		},
		{
			name: "comments and blank lines are skipped",
			text: "# editor droppings\n\n*.swp\n",
			want: RuleSet{"/**/*.swp", "/.git", "/.arc"},
		},
		{
			name: "explicit recursive prefix is preserved",
			text: "**/logs\n",
			want: RuleSet{"/**/logs", "/.git", "/.arc"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compile(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Compile(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestLoadPrefersRuleFile(t *testing.T) {
	s := newTestLocal(t)
	path := filepath.Join(s.Root(), ".arcignore")
	if err := os.WriteFile(path, []byte("*.log\n"), 0644); err != nil {
		t.Fatalf("write rule file: %v", err)
	}

	got := Load(s, "*.tmp\n")
	want := RuleSet{"/**/*.log", "/.git", "/.arc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %v, want %v", got, want)
	}
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	s := newTestLocal(t)

	got := Load(s, "*.tmp\n")
	want := RuleSet{"/**/*.tmp", "/.git", "/.arc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %v, want %v", got, want)
	}
}

func TestLoadIgnoresEmptyRuleFile(t *testing.T) {
	s := newTestLocal(t)
	path := filepath.Join(s.Root(), ".arcignore")
	if err := os.WriteFile(path, []byte("  \n\n"), 0644); err != nil {
		t.Fatalf("write rule file: %v", err)
	}

	got := Load(s, "*.tmp\n")
	want := RuleSet{"/**/*.tmp", "/.git", "/.arc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %v, want %v", got, want)
	}
}
