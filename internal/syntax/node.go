// File: internal/syntax/node.go
package syntax

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// LocationInfo holds the detailed location and snippet of a node.
type LocationInfo struct {
	File    string
	Line    int
	Column  int
	Snippet string
}

func (l LocationInfo) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// NodeContent extracts the string content of a node from the source byte slice.
func NodeContent(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(source)
}

// FlattenAccessPath flattens a chain of property accesses (member_expression
// and subscript_expression) into a list of segments, e.g. window.location.hash
// or obj['prop'] become ["window", "location", "hash"] and ["obj", "prop"].
// It returns nil when the chain contains anything that cannot be resolved
// statically (calls, computed indices, literals).
func FlattenAccessPath(node *sitter.Node, source []byte) []string {
	var path []string
	current := node

	for {
		if current == nil {
			return nil
		}

		switch current.Type() {
		case "identifier", "shorthand_property_identifier":
			path = append([]string{NodeContent(current, source)}, path...)
			return path
		case "this":
			path = append([]string{"this"}, path...)
			return path

		case "member_expression":
			object := current.ChildByFieldName("object")
			property := current.ChildByFieldName("property")
			if property == nil || object == nil {
				return nil
			}
			if property.Type() == "identifier" || property.Type() == "property_identifier" {
				path = append([]string{NodeContent(property, source)}, path...)
				current = object
			} else {
				return nil
			}

		case "subscript_expression":
			object := current.ChildByFieldName("object")
			index := current.ChildByFieldName("index")
			if index == nil || object == nil {
				return nil
			}
			// Only a static string index flattens; obj[i] stays computed.
			if index.Type() == "string" {
				raw := NodeContent(index, source)
				path = append([]string{strings.Trim(raw, "\"'`")}, path...)
				current = object
			} else {
				return nil
			}

		case "parenthesized_expression":
			inner := current.NamedChild(0)
			if inner == nil {
				return nil
			}
			current = inner

		default:
			return nil
		}
	}
}

// AccessPathString renders a flattened access path as dotted text, or "" when
// the node does not form a static chain.
func AccessPathString(node *sitter.Node, source []byte) string {
	path := FlattenAccessPath(node, source)
	if len(path) == 0 {
		return ""
	}
	return strings.Join(path, ".")
}

// IsLiteral reports whether node is a literal expression that cannot carry
// externally controlled data. A template string counts only when it has no
// substitutions.
func IsLiteral(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "string", "number", "true", "false", "null", "undefined", "regex":
		return true
	case "template_string":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if child := node.NamedChild(i); child != nil && child.Type() == "template_substitution" {
				return false
			}
		}
		return true
	}
	return false
}

// StringLiteralValue returns the unquoted value of a string or
// substitution-free template literal. The boolean is false for other nodes.
func StringLiteralValue(node *sitter.Node, source []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Type() {
	case "string", "template_string":
		if node.Type() == "template_string" && !IsLiteral(node) {
			return "", false
		}
		return strings.Trim(NodeContent(node, source), "\"'`"), true
	}
	return "", false
}

// IsFunctionBoundary reports whether node starts a new lexical scope for the
// purposes of declaration resolution and guard walks.
func IsFunctionBoundary(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "function_declaration", "function", "arrow_function",
		"generator_function", "generator_function_declaration",
		"method_definition", "program":
		return true
	}
	return false
}

// LeadingComments returns the comment block immediately preceding node,
// walking back over consecutive comment siblings. It returns "" when the node
// has no attached comments.
func LeadingComments(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	var parts []string
	for sib := node.PrevNamedSibling(); sib != nil && sib.Type() == "comment"; sib = sib.PrevNamedSibling() {
		parts = append([]string{NodeContent(sib, source)}, parts...)
	}
	return strings.Join(parts, "\n")
}

// FormatLocation converts a tree-sitter node location to detailed LocationInfo.
func FormatLocation(filename string, node *sitter.Node, source []byte) LocationInfo {
	if node == nil {
		return LocationInfo{File: filename, Snippet: "N/A"}
	}

	startByte := node.StartByte()
	endByte := node.EndByte()
	startPoint := node.StartPoint()

	snippet := "N/A"
	if int(endByte) <= len(source) && int(startByte) < int(endByte) {
		// Tree-sitter points give row/column; the full line text requires
		// finding the newline boundaries around startByte.
		lineStart := findLineStart(source, int(startByte))
		lineEnd := findLineEnd(source, int(startByte))
		if lineStart >= 0 && lineEnd > lineStart {
			snippet = strings.TrimSpace(string(source[lineStart:lineEnd]))
		} else {
			snippet = node.Content(source)
		}
	}

	return LocationInfo{
		File:    filename,
		Line:    int(startPoint.Row) + 1, // 0-indexed to 1-indexed
		Column:  int(startPoint.Column) + 1,
		Snippet: snippet,
	}
}

func findLineStart(source []byte, idx int) int {
	if idx >= len(source) {
		if len(source) == 0 {
			return 0
		}
		idx = len(source) - 1
	}
	if idx < 0 {
		return 0
	}

	for i := idx; i >= 0; i-- {
		if source[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

func findLineEnd(source []byte, idx int) int {
	for i := idx; i < len(source); i++ {
		if source[i] == '\n' {
			return i
		}
	}
	return len(source)
}
