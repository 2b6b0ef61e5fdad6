package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/mason/internal/core/domain"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref  string
		want domain.PrereqDecl
	}{
		{"cxx{hello}", domain.PrereqDecl{Type: "cxx", Name: "hello"}},
		{"obj{sub/hello}", domain.PrereqDecl{Type: "obj", Dir: "sub", Name: "hello"}},
		{"hxx{gen.hxx}", domain.PrereqDecl{Type: "hxx", Name: "gen", Ext: "hxx", HasExt: true}},
		{"libmason%hxx{api}", domain.PrereqDecl{Proj: "libmason", Type: "hxx", Name: "api"}},
		{"exe{a/b/tool}", domain.PrereqDecl{Type: "exe", Dir: "a/b", Name: "tool"}},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := domain.ParseRef(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRef_Errors(t *testing.T) {
	for _, ref := range []string{"", "hello", "{hello}", "cxx{}", "cxx{hello"} {
		t.Run(ref, func(t *testing.T) {
			_, err := domain.ParseRef(ref)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}
