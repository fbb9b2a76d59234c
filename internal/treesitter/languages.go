package treesitter

import (
	"path/filepath"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// extensionLanguages maps file extensions to grammar language names.
// jsx/tsx need no separate grammars: the JS and TS grammars handle them.
var extensionLanguages = map[string]string{
	"go":   "go",
	"py":   "python",
	"pyw":  "python",
	"pyx":  "python",
	"java": "java",
	"js":   "javascript",
	"mjs":  "javascript",
	"cjs":  "javascript",
	"jsx":  "javascript",
	"ts":   "typescript",
	"mts":  "typescript",
	"cts":  "typescript",
	"tsx":  "typescript",
	"rs":   "rust",
	"cpp":  "cpp",
	"cxx":  "cpp",
	"cc":   "cpp",
	"hpp":  "cpp",
	"hxx":  "cpp",
	"hh":   "cpp",
	"c":    "cpp",
	"h":    "cpp",
}

// MapPath returns the grammar language name for a file path, or "" when
// the extension is not supported.
func MapPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return ""
	}
	return extensionLanguages[ext]
}

// SupportedLanguages returns the sorted set of grammar language names.
func SupportedLanguages() []string {
	set := make(map[string]struct{}, len(extensionLanguages))
	for _, lang := range extensionLanguages {
		set[lang] = struct{}{}
	}
	langs := make([]string, 0, len(set))
	for lang := range set {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// languageForName returns the runtime grammar for a language name.
func languageForName(name string) *tree_sitter.Language {
	switch name {
	case "go":
		return tree_sitter.NewLanguage(tree_sitter_go.Language())
	case "python":
		return tree_sitter.NewLanguage(tree_sitter_python.Language())
	case "java":
		return tree_sitter.NewLanguage(tree_sitter_java.Language())
	case "javascript":
		return tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	case "typescript":
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case "rust":
		return tree_sitter.NewLanguage(tree_sitter_rust.Language())
	case "cpp":
		return tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	default:
		return nil
	}
}
