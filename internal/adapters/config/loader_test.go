package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/mason/internal/adapters/config"
	"go.trai.ch/mason/internal/core/domain"
)

const buildfile = `
version: "1"
out: build
variables:
  cc.path: g++
  cc.coptions: ["-O2", "-g"]
dirs:
  lib:
    variables:
      cc.coptions: ["-O3"]
targets:
  - type: exe
    name: hello
    prereqs: ["obj{hello}"]
  - type: obj
    name: hello
    variables:
      cc.poptions: ["-Iinclude"]
    prereqs: ["cxx{hello}", "hxx{greeting}"]
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mason.yaml")
	require.NoError(t, os.WriteFile(path, []byte(buildfile), 0o644))

	m, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, m.SrcRoot)
	assert.Equal(t, filepath.Join(dir, "build"), m.OutRoot)
	assert.Equal(t, "g++", m.Variables["cc.path"])
	assert.Equal(t, []string{"-O2", "-g"}, m.Variables["cc.coptions"])

	require.Len(t, m.Dirs, 1)
	assert.Equal(t, "lib", m.Dirs[0].Dir)
	assert.Equal(t, []string{"-O3"}, m.Dirs[0].Variables["cc.coptions"])

	require.Len(t, m.Targets, 2)

	exe := m.Targets[0]
	assert.Equal(t, "exe", exe.Type)
	assert.Equal(t, "hello", exe.Name)
	require.Len(t, exe.Prereqs, 1)
	assert.Equal(t, domain.PrereqDecl{Type: "obj", Name: "hello"}, exe.Prereqs[0])

	obj := m.Targets[1]
	assert.Equal(t, []string{"-Iinclude"}, obj.Variables["cc.poptions"])
	require.Len(t, obj.Prereqs, 2)
	assert.Equal(t, domain.PrereqDecl{Type: "hxx", Name: "greeting"}, obj.Prereqs[1])
}

func TestLoad_DefaultsToInSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mason.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\n"), 0o644))

	m, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.SrcRoot, m.OutRoot)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := config.Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("targets: [nope"), 0o644))
	_, err = config.Load(bad)
	require.Error(t, err)

	unnamed := filepath.Join(dir, "unnamed.yaml")
	require.NoError(t, os.WriteFile(unnamed, []byte("targets:\n  - type: obj\n"), 0o644))
	_, err = config.Load(unnamed)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	badRef := filepath.Join(dir, "badref.yaml")
	require.NoError(t, os.WriteFile(badRef, []byte("targets:\n  - type: obj\n    name: x\n    prereqs: [nope]\n"), 0o644))
	_, err = config.Load(badRef)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestFileLoader_DefaultName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mason.yaml"), []byte("version: \"1\"\n"), 0o644))

	l := &config.FileLoader{}
	m, err := l.Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, dir, m.SrcRoot)

	_, err = l.Load(dir, "other.yaml")
	require.Error(t, err)
}
