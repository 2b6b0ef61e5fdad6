// Package config provides the buildfile loader for mason.
package config

import (
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/core/ports"
)

// DefaultFilename is the buildfile looked up in the working directory.
const DefaultFilename = "mason.yaml"

var _ ports.ConfigLoader = (*FileLoader)(nil)

// FileLoader implements ports.ConfigLoader using a YAML buildfile.
type FileLoader struct{}

// Load reads the buildfile from the given working directory. An empty
// name selects the default buildfile.
func (l *FileLoader) Load(cwd, name string) (*domain.Manifest, error) {
	if name == "" {
		name = DefaultFilename
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, name)
	}
	return Load(path)
}

// Buildfile is the YAML structure of mason.yaml.
type Buildfile struct {
	Version   string             `yaml:"version"`
	Src       string             `yaml:"src"`
	Out       string             `yaml:"out"`
	Variables map[string]any     `yaml:"variables"`
	Dirs      map[string]DirDTO  `yaml:"dirs"`
	Targets   []TargetDTO        `yaml:"targets"`
}

// DirDTO declares a nested scope.
type DirDTO struct {
	Variables map[string]any `yaml:"variables"`
}

// TargetDTO declares a target.
type TargetDTO struct {
	Type      string         `yaml:"type"`
	Dir       string         `yaml:"dir"`
	Name      string         `yaml:"name"`
	Ext       string         `yaml:"ext"`
	Variables map[string]any `yaml:"variables"`
	Prereqs   []string       `yaml:"prereqs"`
}

// Load reads a buildfile from the given path and returns the manifest.
func Load(path string) (*domain.Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read buildfile")
	}

	var bf Buildfile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, zerr.Wrap(err, "failed to parse buildfile")
	}

	base := filepath.Dir(path)

	srcRoot := base
	if bf.Src != "" {
		srcRoot = absJoin(base, bf.Src)
	}
	outRoot := srcRoot
	if bf.Out != "" {
		outRoot = absJoin(base, bf.Out)
	}

	m := &domain.Manifest{
		SrcRoot:   srcRoot,
		OutRoot:   outRoot,
		Variables: normalizeVars(bf.Variables),
	}

	for dir, d := range bf.Dirs {
		m.Dirs = append(m.Dirs, domain.DirDecl{
			Dir:       filepath.Clean(dir),
			Variables: normalizeVars(d.Variables),
		})
	}

	for _, td := range bf.Targets {
		if td.Type == "" || td.Name == "" {
			return nil, zerr.With(zerr.With(domain.ErrConfiguration,
				"reason", "target needs type and name"), "name", td.Name)
		}

		decl := domain.TargetDecl{
			Type:      td.Type,
			Dir:       filepath.Clean(td.Dir),
			Name:      td.Name,
			Ext:       td.Ext,
			HasExt:    td.Ext != "",
			Variables: normalizeVars(td.Variables),
		}
		for _, ref := range td.Prereqs {
			pd, err := domain.ParseRef(ref)
			if err != nil {
				return nil, zerr.With(err, "target", td.Name)
			}
			decl.Prereqs = append(decl.Prereqs, pd)
		}
		m.Targets = append(m.Targets, decl)
	}

	return m, nil
}

func absJoin(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// normalizeVars converts YAML-decoded lists into []string (dropping
// non-string elements); strings and other scalars pass through unchanged.
func normalizeVars(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch vv := v.(type) {
		case []any:
			ss := make([]string, 0, len(vv))
			for _, e := range vv {
				if s, ok := e.(string); ok {
					ss = append(ss, s)
				}
			}
			out[k] = ss
		case string:
			out[k] = vv
		default:
			// Scalars (numbers, booleans) are carried as-is; rules that
			// expect strings simply will not see them.
			out[k] = v
		}
	}
	return out
}
