package loader

import (
	"errors"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
)

// file is the part shared by the file loaders.
type file struct {
	fs    FileSystem
	path  string
	parse func(source string, data []byte) (map[string]any, error)
}

// Load reads and parses the file. A missing file yields nil.
func (f file) Load() (map[string]any, error) {
	data, err := readFile(f.fs, f.path)
	if err != nil || data == nil {
		return nil, err
	}
	return f.parse(f.path, data)
}

// LoadFromReader parses a document read from r.
func (f file) LoadFromReader(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return f.parse("<reader>", data)
}

// TOMLLoader loads configuration from a TOML file.
type TOMLLoader struct {
	file
}

// NewTOMLLoader returns a loader for the TOML file at path.
func NewTOMLLoader(path string) *TOMLLoader {
	return NewTOMLLoaderWithFS(DefaultFS(), path)
}

// NewTOMLLoaderWithFS returns a TOML loader reading from fsys.
func NewTOMLLoaderWithFS(fsys FileSystem, path string) *TOMLLoader {
	return &TOMLLoader{file{fs: fsys, path: path, parse: parseTOML}}
}

func parseTOML(source string, data []byte) (map[string]any, error) {
	config := make(map[string]any)
	if err := toml.Unmarshal(data, &config); err != nil {
		pe := &ParseError{Path: source, Message: err.Error(), Err: err}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			pe.Line, pe.Column = de.Position()
		}
		return nil, pe
	}
	return config, nil
}
