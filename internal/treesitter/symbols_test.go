package treesitter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func parseMarkup(t *testing.T, path, content string) *FileMarkup {
	t.Helper()
	parser := NewParser()
	t.Cleanup(func() { _ = parser.Close() })

	svc := NewMarkupService(parser)
	markup, err := svc.FileMarkup(context.Background(), path, content)
	require.NoError(t, err)
	return markup
}

func symbolByPath(markup *FileMarkup, path string) (Symbol, bool) {
	for _, s := range markup.SymbolsSortedByPathLen {
		if s.SymbolPath == path {
			return s, true
		}
	}
	return Symbol{}, false
}

func TestExtractGoSymbols(t *testing.T) {
	t.Parallel()

	src := `package zoo

// Croak makes noise.
func Croak() {
	println("croak")
}

type Toad struct {
	legs int
}
`
	markup := parseMarkup(t, "/ws/zoo.go", src)

	croak, ok := symbolByPath(markup, "Croak")
	require.True(t, ok)
	require.Equal(t, SymbolTypeFunction, croak.SymbolType)
	require.Equal(t, 3, croak.FullRange.StartRow)
	require.Equal(t, 5, croak.FullRange.EndRow)
	// The body starts on the signature line and must carry a non-zero
	// end byte so the postprocessor can downgrade it.
	require.NotZero(t, croak.DefinitionRange.EndByte)
	require.Equal(t, 3, croak.DeclarationRange.StartRow)

	toad, ok := symbolByPath(markup, "Toad")
	require.True(t, ok)
	require.Equal(t, SymbolTypeType, toad.SymbolType)

	var comments int
	for _, s := range markup.SymbolsSortedByPathLen {
		if s.SymbolType == SymbolTypeComment {
			comments++
		}
	}
	require.GreaterOrEqual(t, comments, 1)
}

func TestExtractPythonNestedPaths(t *testing.T) {
	t.Parallel()

	src := `class Toad:
    def croak(self):
        print("croak")

    def hop(self):
        pass
`
	markup := parseMarkup(t, "/ws/toad.py", src)

	_, ok := symbolByPath(markup, "Toad")
	require.True(t, ok)

	croak, ok := symbolByPath(markup, "Toad::croak")
	require.True(t, ok)
	require.Equal(t, SymbolTypeFunction, croak.SymbolType)
	require.Equal(t, 1, croak.FullRange.StartRow)

	_, ok = symbolByPath(markup, "Toad::hop")
	require.True(t, ok)
}

func TestSymbolsSortedByPathLen(t *testing.T) {
	t.Parallel()

	src := `class Outer:
    class Inner:
        def deeply_nested_method(self):
            pass
`
	markup := parseMarkup(t, "/ws/nested.py", src)

	prev := -1
	for _, s := range markup.SymbolsSortedByPathLen {
		require.GreaterOrEqual(t, len(s.SymbolPath), prev)
		prev = len(s.SymbolPath)
	}
	_, ok := symbolByPath(markup, "Outer::Inner::deeply_nested_method")
	require.True(t, ok)
}

func TestSymbolGUIDsAreDeterministic(t *testing.T) {
	t.Parallel()

	src := "def f():\n    pass\n"
	a := parseMarkup(t, "/ws/g.py", src)
	b := parseMarkup(t, "/ws/g.py", src)

	fa, ok := symbolByPath(a, "f")
	require.True(t, ok)
	fb, ok := symbolByPath(b, "f")
	require.True(t, ok)
	require.Equal(t, fa.GUID, fb.GUID)
	require.NotEqual(t, fa.GUID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestMarkupUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	parser := NewParser()
	t.Cleanup(func() { _ = parser.Close() })
	svc := NewMarkupService(parser)

	_, err := svc.FileMarkup(context.Background(), "/ws/readme.txt", "hello\n")
	require.Error(t, err)
}

func TestMapPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "go", MapPath("a/b/main.go"))
	require.Equal(t, "python", MapPath("x.py"))
	require.Equal(t, "typescript", MapPath("ui.tsx"))
	require.Equal(t, "cpp", MapPath("core.hpp"))
	require.Equal(t, "", MapPath("notes.txt"))
	require.Equal(t, "", MapPath("Makefile"))
}
