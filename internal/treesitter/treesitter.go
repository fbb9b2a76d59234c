// Package treesitter provides the AST service of the backend: a pooled
// tree-sitter parser harness and symbol markup extraction for the context
// postprocessor.
package treesitter

import (
	"context"

	"github.com/google/uuid"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// SymbolType classifies an extracted symbol.
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeMethod    SymbolType = "method"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeStruct    SymbolType = "struct"
	SymbolTypeInterface SymbolType = "interface"
	SymbolTypeEnum      SymbolType = "enum"
	SymbolTypeTrait     SymbolType = "trait"
	SymbolTypeModule    SymbolType = "module"
	SymbolTypeNamespace SymbolType = "namespace"
	SymbolTypeType      SymbolType = "type"

	// SymbolTypeComment marks comment blocks; the postprocessor treats
	// these specially when propagating scores upward.
	SymbolTypeComment SymbolType = "comment_definition"
)

// Range is a contiguous region of source, rows 0-based inclusive.
type Range struct {
	StartByte int
	EndByte   int
	StartRow  int
	EndRow    int
}

// Symbol is one extracted declaration (or comment block) of a file.
type Symbol struct {
	// SymbolPath is the "::"-joined qualified name, e.g. "Toad::croak".
	SymbolPath string
	SymbolType SymbolType
	GUID       uuid.UUID

	// FullRange spans the whole node including its body.
	FullRange Range
	// DeclarationRange spans the signature up to the body.
	DeclarationRange Range
	// DefinitionRange spans the body; EndByte == 0 means the symbol has
	// no body.
	DefinitionRange Range
}

// FileMarkup is the parsed view of one file handed to the postprocessor.
type FileMarkup struct {
	Cpath       string
	FileContent string

	// SymbolsSortedByPathLen is ordered by SymbolPath length ascending so
	// that more specific symbols overwrite less specific ones when
	// coloring lines.
	SymbolsSortedByPathLen []Symbol
}

// Parser is the tree-sitter parsing interface used by the markup service.
type Parser interface {
	// ParseTree parses content and returns a cloned tree owned by the
	// caller, who must Close it.
	ParseTree(ctx context.Context, path string, content []byte) (*tree_sitter.Tree, error)
	Languages() []string
	SupportsLanguage(lang string) bool
	Close() error
}
