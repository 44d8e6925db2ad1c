package loader

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func TestTOMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/molsync.toml", `
[sync]
outboundDelay = "250ms"

[[presets]]
name = "Ethanol"
text = "CCO"
`)

	got, err := NewTOMLLoaderWithFS(memfs, "/molsync.toml").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]any{
		"sync": map[string]any{"outboundDelay": "250ms"},
		"presets": []any{
			map[string]any{"name": "Ethanol", "text": "CCO"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestTOMLLoader_Missing(t *testing.T) {
	got, err := NewTOMLLoaderWithFS(NewMemFS(), "/absent.toml").Load()
	if err != nil || got != nil {
		t.Errorf("Load() = %v, %v; want nil, nil", got, err)
	}
}

func TestTOMLLoader_ParseError(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.toml", "[sync]\noutboundDelay = \n")

	_, err := NewTOMLLoaderWithFS(memfs, "/bad.toml").Load()
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Load() error = %v, want *ParseError", err)
	}
	if pe.Path != "/bad.toml" || pe.Line != 2 {
		t.Errorf("ParseError = %+v, want line 2 of /bad.toml", pe)
	}
}

func TestYAMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/molsync.yaml", `
logging:
  level: debug
presets:
  - name: Ethanol
    text: CCO
`)

	got, err := NewYAMLLoaderWithFS(memfs, "/molsync.yaml").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]any{
		"logging": map[string]any{"level": "debug"},
		"presets": []any{
			map[string]any{"name": "Ethanol", "text": "CCO"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestYAMLLoader_Reader(t *testing.T) {
	l := NewYAMLLoader("")
	got, err := l.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("empty document = %v, want empty map", got)
	}

	if _, err := l.LoadFromReader(strings.NewReader("sync: [unclosed")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"a.toml", "*loader.TOMLLoader", false},
		{"a.yaml", "*loader.YAMLLoader", false},
		{"A.YML", "*loader.YAMLLoader", false},
		{"a.json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			l, err := ForPath(nil, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ForPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := typeName(l); got != tt.want {
				t.Errorf("ForPath() = %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(l Loader) string {
	switch l.(type) {
	case *TOMLLoader:
		return "*loader.TOMLLoader"
	case *YAMLLoader:
		return "*loader.YAMLLoader"
	}
	return "unknown"
}

func TestEnvLoader_Load(t *testing.T) {
	env := []string{
		"MOLSYNC_LOG_LEVEL=debug",
		"MOLSYNC_SYNC_OUTBOUND_DELAY=250ms",
		"MOLSYNC_LOOKUP_BASE_URL=http://localhost:8080",
		"MOLSYNC_LOOKUP_CACHE_SIZE=16",
		`MOLSYNC_PRESETS=[{"name":"Ethanol","text":"CCO"}]`,
		"OTHER_VAR=ignored",
	}

	got, err := NewEnvLoaderFrom(DefaultEnvPrefix, env).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := map[string]any{
		"logging": map[string]any{"level": "debug"},
		"sync":    map[string]any{"outboundDelay": "250ms"},
		"lookup": map[string]any{
			"baseURL":   "http://localhost:8080",
			"cacheSize": int64(16),
		},
		"presets": []any{
			map[string]any{"name": "Ethanol", "text": "CCO"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"yes", true},
		{"off", false},
		{"42", int64(42)},
		{"1.5", 1.5},
		{"1m30s", "1m30s"},
		{"[1,2]", []any{float64(1), float64(2)}},
		{"[not json", "[not json"},
		{"CCO", "CCO"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, parseValue(tt.in)); diff != "" {
				t.Errorf("parseValue(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"sync":    map[string]any{"outboundDelay": "400ms", "inboundDelay": "500ms"},
		"presets": []any{"a"},
	}
	src := map[string]any{
		"sync":    map[string]any{"outboundDelay": "100ms"},
		"presets": []any{"b"},
	}
	want := map[string]any{
		"sync":    map[string]any{"outboundDelay": "100ms", "inboundDelay": "500ms"},
		"presets": []any{"b"},
	}
	if diff := cmp.Diff(want, DeepMerge(dst, src)); diff != "" {
		t.Errorf("DeepMerge() mismatch (-want +got):\n%s", diff)
	}
}
