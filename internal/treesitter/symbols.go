package treesitter

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// guidNamespace seeds deterministic symbol GUIDs so repeated parses of the
// same content yield identical identifiers.
var guidNamespace = uuid.MustParse("9d3c62c4-5a17-4d5c-9f3e-b7b9a1c8e0d2")

// declarationKinds maps per-language AST node kinds to symbol types. A
// node listed here becomes a path segment for everything nested below it.
var declarationKinds = map[string]map[string]SymbolType{
	"go": {
		"function_declaration": SymbolTypeFunction,
		"method_declaration":   SymbolTypeMethod,
		"type_spec":            SymbolTypeType,
	},
	"python": {
		"function_definition": SymbolTypeFunction,
		"class_definition":    SymbolTypeClass,
	},
	"java": {
		"class_declaration":       SymbolTypeClass,
		"interface_declaration":   SymbolTypeInterface,
		"enum_declaration":        SymbolTypeEnum,
		"method_declaration":      SymbolTypeMethod,
		"constructor_declaration": SymbolTypeMethod,
	},
	"javascript": {
		"function_declaration": SymbolTypeFunction,
		"class_declaration":    SymbolTypeClass,
		"method_definition":    SymbolTypeMethod,
	},
	"typescript": {
		"function_declaration":  SymbolTypeFunction,
		"class_declaration":     SymbolTypeClass,
		"method_definition":     SymbolTypeMethod,
		"interface_declaration": SymbolTypeInterface,
		"enum_declaration":      SymbolTypeEnum,
		"module":                SymbolTypeModule,
	},
	"rust": {
		"function_item": SymbolTypeFunction,
		"struct_item":   SymbolTypeStruct,
		"enum_item":     SymbolTypeEnum,
		"trait_item":    SymbolTypeTrait,
		"impl_item":     SymbolTypeClass,
		"mod_item":      SymbolTypeModule,
	},
	"cpp": {
		"function_definition":  SymbolTypeFunction,
		"class_specifier":      SymbolTypeClass,
		"struct_specifier":     SymbolTypeStruct,
		"enum_specifier":       SymbolTypeEnum,
		"namespace_definition": SymbolTypeNamespace,
	},
}

// commentKinds are node kinds colored as comment definitions.
var commentKinds = map[string]struct{}{
	"comment":       {},
	"line_comment":  {},
	"block_comment": {},
}

// ExtractSymbols walks the tree and returns every declaration and comment
// block with qualified paths, ranges, and deterministic GUIDs. The result
// is in tree walk order (each declaration before its nested ones); it is
// not sorted by path length.
func ExtractSymbols(cpath, lang string, root *tree_sitter.Node, content []byte) []Symbol {
	e := &symbolExtractor{
		cpath:   cpath,
		content: content,
		kinds:   declarationKinds[lang],
	}
	e.walk(root, "")
	return e.out
}

type symbolExtractor struct {
	cpath   string
	content []byte
	kinds   map[string]SymbolType
	out     []Symbol
}

func (e *symbolExtractor) walk(node *tree_sitter.Node, parentPath string) {
	kind := node.Kind()

	if _, ok := commentKinds[kind]; ok {
		e.out = append(e.out, e.commentSymbol(node))
		return
	}

	path := parentPath
	if symbolType, ok := e.kinds[kind]; ok {
		if name := e.symbolName(node); name != "" {
			path = joinSymbolPath(parentPath, name)
			e.out = append(e.out, e.declarationSymbol(node, path, symbolType))
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		e.walk(child, path)
	}
}

func (e *symbolExtractor) declarationSymbol(node *tree_sitter.Node, path string, symbolType SymbolType) Symbol {
	full := nodeRange(node)
	sym := Symbol{
		SymbolPath:       path,
		SymbolType:       symbolType,
		GUID:             symbolGUID(e.cpath, path, full.StartRow),
		FullRange:        full,
		DeclarationRange: full,
	}
	if body := node.ChildByFieldName("body"); body != nil {
		sym.DefinitionRange = nodeRange(body)
		sym.DeclarationRange = Range{
			StartByte: full.StartByte,
			EndByte:   sym.DefinitionRange.StartByte,
			StartRow:  full.StartRow,
			EndRow:    sym.DefinitionRange.StartRow,
		}
	}
	return sym
}

func (e *symbolExtractor) commentSymbol(node *tree_sitter.Node) Symbol {
	full := nodeRange(node)
	return Symbol{
		SymbolType: SymbolTypeComment,
		GUID:       symbolGUID(e.cpath, "comment", full.StartRow),
		FullRange:  full,
	}
}

// symbolName resolves the node's name, descending through declarators for
// C-family definitions.
func (e *symbolExtractor) symbolName(node *tree_sitter.Node) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return e.text(name)
	}
	// Rust impl blocks name the implemented type.
	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		return e.text(typeNode)
	}
	// C++ function definitions bury the identifier inside declarators.
	if decl := node.ChildByFieldName("declarator"); decl != nil {
		if id := findIdentifier(decl); id != nil {
			return e.text(id)
		}
	}
	return ""
}

func findIdentifier(node *tree_sitter.Node) *tree_sitter.Node {
	switch node.Kind() {
	case "identifier", "field_identifier", "qualified_identifier",
		"destructor_name", "operator_name", "type_identifier":
		return node
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if id := findIdentifier(child); id != nil {
			return id
		}
	}
	return nil
}

func (e *symbolExtractor) text(node *tree_sitter.Node) string {
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(e.content) || start > end {
		return ""
	}
	return strings.TrimSpace(string(e.content[start:end]))
}

func nodeRange(node *tree_sitter.Node) Range {
	return Range{
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
		StartRow:  int(node.StartPosition().Row),
		EndRow:    int(node.EndPosition().Row),
	}
}

func joinSymbolPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "::" + name
}

func symbolGUID(cpath, path string, row int) uuid.UUID {
	return uuid.NewSHA1(guidNamespace, []byte(cpath+"\x00"+path+"\x00"+strconv.Itoa(row)))
}
