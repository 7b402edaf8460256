package validate

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

const methodCallQuery = `
(call_expression
  function: (field_expression
    field: (field_identifier) @method)) @call
`

// scanAST runs an AST rule against one file. Only the method-call kind is
// defined; Rust is the only grammar the rules target today.
func (s *Scanner) scanAST(rule Rule, f SourceFile, src []byte) []Violation {
	if rule.Matcher.Kind != "method-call" || !strings.HasSuffix(f.RelPath, ".rs") {
		return nil
	}
	method := rule.Matcher.Predicates["method"]
	if method == "" {
		return nil
	}
	safety := rule.Matcher.Predicates["safety_comment"]

	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		s.log.Warn("parse failed, ast rule skipped", "rule", rule.ID, "file", f.RelPath, "error", err)
		return nil
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(methodCallQuery), rust.GetLanguage())
	if err != nil {
		s.log.Warn("query compile failed", "rule", rule.ID, "error", err)
		return nil
	}
	defer q.Close()
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	lines := strings.Split(string(src), "\n")
	var out []Violation
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var call, methodNode *sitter.Node
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "call":
				call = cap.Node
			case "method":
				methodNode = cap.Node
			}
		}
		if call == nil || methodNode == nil || methodNode.Content(src) != method {
			continue
		}
		if insideTestContext(call, src) {
			continue
		}
		line := int(call.StartPoint().Row) + 1
		if safety != "" && hasAnnotation(lines, line, safety) {
			continue
		}
		callText := "." + method + "()"
		if excepted(rule, f.RelPath, callText) {
			continue
		}
		out = append(out, ForbiddenCall{
			base: base{
				code:       rule.ID,
				category:   rule.Category,
				severity:   rule.Severity,
				file:       f.RelPath,
				line:       line,
				suggestion: rule.Suggestion,
			},
			Call: callText,
		})
	}
	return out
}

// insideTestContext reports whether the node sits inside a #[cfg(test)]
// module or a #[test] function.
func insideTestContext(node *sitter.Node, src []byte) bool {
	for n := node; n != nil; n = n.Parent() {
		switch n.Type() {
		case "mod_item":
			if precededByAttribute(n, src, "cfg(test)") {
				return true
			}
		case "function_item":
			if precededByAttribute(n, src, "test") {
				return true
			}
		}
	}
	return false
}

// precededByAttribute checks the item's preceding sibling attributes for the
// given marker.
func precededByAttribute(n *sitter.Node, src []byte, marker string) bool {
	for sib := n.PrevNamedSibling(); sib != nil; sib = sib.PrevNamedSibling() {
		if sib.Type() != "attribute_item" {
			return false
		}
		if strings.Contains(sib.Content(src), marker) {
			return true
		}
	}
	return false
}

// hasAnnotation reports whether the line directly above carries the marker.
func hasAnnotation(lines []string, line int, marker string) bool {
	idx := line - 2 // line is 1-based; look one above
	if idx < 0 || idx >= len(lines) {
		return false
	}
	return strings.Contains(lines[idx], marker)
}
