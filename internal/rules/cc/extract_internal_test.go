package cc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.trai.ch/mason/internal/core/domain"
	"go.trai.ch/mason/internal/engine/scope"
	"go.trai.ch/mason/internal/engine/target"
)

func TestNextMake(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a.cxx b.hxx c.hxx", []string{"a.cxx", "b.hxx", "c.hxx"}},
		{"continuation", "a.cxx b.hxx \\", []string{"a.cxx", "b.hxx"}},
		{"escaped space", `dir/with\ space/x.hxx y.hxx`, []string{"dir/with space/x.hxx", "y.hxx"}},
		{"escaped dollar", "a$$b.hxx", []string{"a$b.hxx"}},
		{"escaped backslash", `a\\b.hxx`, []string{`a\b.hxx`}},
		{"leading spaces", "   a.hxx", []string{"a.hxx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			pos := 0
			for pos < len(tt.line) {
				if f := nextMake(tt.line, &pos); f != "" {
					got = append(got, f)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapExtension(t *testing.T) {
	m := scope.NewMap("/out", "/src")
	s := m.Root()

	assert.Same(t, Hxx, mapExtension(s, "hxx"))
	assert.Same(t, Cxx, mapExtension(s, "cxx"))
	assert.Same(t, H, mapExtension(s, "h"))
	// Unknown extensions fall back to plain C headers.
	assert.Same(t, H, mapExtension(s, "weird"))
	assert.Same(t, H, mapExtension(nil, "hxx.bak"))

	// A scope override rebinds the extension.
	s.Set(domain.N("hxx.ext"), "hpp")
	assert.Same(t, Hxx, mapExtension(s, "hpp"))
}

func TestBuildPrefixMap(t *testing.T) {
	out := filepath.Clean("/tmp/proj")
	m := scope.NewMap(out, out)
	bs := m.Root()

	tg := &target.Target{Type: Obj, Dir: filepath.Join(out, "foo"), Name: "x"}

	pm := buildPrefixMap(bs, tg, []string{"-I" + out, "-O2", "-I", filepath.Join(out, "inc"), "-I/elsewhere", "-Irelative"})

	// -I<out> with the target under out/foo yields the "foo" prefix;
	// directories outside the project and relative ones are ignored.
	assert.Equal(t, out, pm["foo"])
	assert.Equal(t, filepath.Join(out, "inc"), pm[""])
	assert.NotContains(t, pm, "elsewhere")
	assert.Len(t, pm, 2)
}

func TestBuildPrefixMap_LastWins(t *testing.T) {
	out := filepath.Clean("/tmp/proj")
	m := scope.NewMap(out, out)
	tg := &target.Target{Type: Obj, Dir: out, Name: "x"}

	a := filepath.Join(out, "a")
	b := filepath.Join(out, "b")
	pm := buildPrefixMap(m.Root(), tg, []string{"-I" + a, "-I" + b})

	// Both map the empty prefix; the most recently seen mapping wins.
	assert.Equal(t, b, pm[""])
}

func TestPrefixLookup(t *testing.T) {
	m := map[string]string{
		"":        "/proj",
		"foo":     "/proj/x",
		"foo/bar": "/proj/y",
	}

	// Longest matching prefix wins.
	d, ok := prefixLookup(m, "foo/bar/deep")
	assert.True(t, ok)
	assert.Equal(t, "/proj/y", d)

	d, ok = prefixLookup(m, "foo")
	assert.True(t, ok)
	assert.Equal(t, "/proj/x", d)

	d, ok = prefixLookup(m, ".")
	assert.True(t, ok)
	assert.Equal(t, "/proj", d)

	_, ok = prefixLookup(map[string]string{"foo": "/x"}, "other")
	assert.False(t, ok)
}

func TestChecksums(t *testing.T) {
	// Deterministic and order-sensitive.
	assert.Equal(t, optionsChecksum([]string{"-O2", "-g"}), optionsChecksum([]string{"-O2", "-g"}))
	assert.NotEqual(t, optionsChecksum([]string{"-O2", "-g"}), optionsChecksum([]string{"-g", "-O2"}))
	assert.NotEqual(t, optionsChecksum(nil), optionsChecksum([]string{"-O2"}))

	assert.Equal(t, toolChecksum("c++"), toolChecksum("c++"))
	assert.NotEqual(t, toolChecksum("c++"), toolChecksum("clang++"))
}
