//go:build cgo

package chunk

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// syntacticBoundaries parses content with tree-sitter and returns the
// line spans of top-level and nested declarations. An empty result
// sends the caller to the window fallback.
func syntacticBoundaries(path string, content []byte, lang Language) []boundary {
	tsLang := sitterLanguage(lang)
	if tsLang == nil {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(tsLang)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	declTypes := declarationNodeTypes(lang)
	var bounds []boundary
	collectBoundaries(tree.RootNode(), content, declTypes, &bounds)
	return bounds
}

func collectBoundaries(node *sitter.Node, source []byte, declTypes map[string]bool, out *[]boundary) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if declTypes[child.Type()] {
			*out = append(*out, boundary{
				startLine: int(child.StartPoint().Row) + 1,
				endLine:   int(child.EndPoint().Row) + 1,
				symbol:    declarationName(child, source),
			})
			continue
		}
		// Recurse so methods inside classes and nested declarations are
		// still found.
		collectBoundaries(child, source, declTypes, out)
	}
}

// declarationName finds the identifier child naming a declaration.
func declarationName(node *sitter.Node, source []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(source)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "identifier", "field_identifier", "type_identifier", "property_identifier":
			return child.Content(source)
		}
	}
	return ""
}

func sitterLanguage(lang Language) *sitter.Language {
	switch lang {
	case LangGo:
		return golang.GetLanguage()
	case LangJavaScript:
		return javascript.GetLanguage()
	case LangTypeScript:
		return typescript.GetLanguage()
	case LangTSX:
		return tsx.GetLanguage()
	case LangPython:
		return python.GetLanguage()
	case LangRust:
		return rust.GetLanguage()
	case LangJava:
		return java.GetLanguage()
	default:
		return nil
	}
}

func declarationNodeTypes(lang Language) map[string]bool {
	switch lang {
	case LangGo:
		return map[string]bool{
			"function_declaration": true,
			"method_declaration":   true,
			"type_declaration":     true,
		}
	case LangJavaScript, LangTypeScript, LangTSX:
		return map[string]bool{
			"function_declaration": true,
			"class_declaration":    true,
			"method_definition":    true,
		}
	case LangPython:
		return map[string]bool{
			"function_definition": true,
			"class_definition":    true,
		}
	case LangRust:
		return map[string]bool{
			"function_item": true,
			"struct_item":   true,
			"impl_item":     true,
		}
	case LangJava:
		return map[string]bool{
			"class_declaration":  true,
			"method_declaration": true,
		}
	default:
		return nil
	}
}
