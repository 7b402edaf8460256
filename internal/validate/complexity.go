package validate

import (
	"os"
	"regexp"
	"strings"
)

// FileComplexity holds the structural metrics for one source file.
type FileComplexity struct {
	File            string `json:"file"`
	Lines           int    `json:"lines"`
	CodeLines       int    `json:"code_lines"`
	Functions       int    `json:"functions"`
	LongestFunction int    `json:"longest_function"`
	MaxNesting      int    `json:"max_nesting"`
}

// funcStartRe recognizes function definitions across the brace languages the
// inventory covers (rust, go, js/ts).
var funcStartRe = regexp.MustCompile(`^\s*(pub(\([a-z]+\))?\s+)?(async\s+)?(fn|func|function)\s`)

// AnalyzeComplexity measures every non-fixture file in the inventory. Results
// come back in inventory order.
func AnalyzeComplexity(files []SourceFile) ([]FileComplexity, error) {
	var out []FileComplexity
	for _, f := range files {
		if f.Kind == KindFixture {
			continue
		}
		src, err := os.ReadFile(f.AbsPath)
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(f.RelPath, ".py") {
			out = append(out, measureIndent(f.RelPath, string(src)))
			continue
		}
		out = append(out, measureBraces(f.RelPath, string(src)))
	}
	return out, nil
}

type funcFrame struct {
	start  int
	entry  int // brace depth before the function's own block
	opened bool
}

// measureBraces walks a brace-delimited file tracking block depth. Function
// length runs from the definition line until depth falls back to the level
// the function opened at. String literals are not lexed, so a brace inside a
// string skews the depth for that file; the metrics are advisory.
func measureBraces(relPath, src string) FileComplexity {
	m := FileComplexity{File: relPath}
	depth := 0
	var stack []funcFrame
	inBlockComment := false

	lines := strings.Split(src, "\n")
	m.Lines = len(lines)
	if strings.HasSuffix(src, "\n") {
		m.Lines--
	}

	closeFrame := func(line int) {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		m.Functions++
		if n := line - top.start + 1; n > m.LongestFunction {
			m.LongestFunction = n
		}
	}

	for i, line := range lines {
		lineNo := i + 1
		t := strings.TrimSpace(line)
		if inBlockComment {
			if strings.Contains(t, "*/") {
				inBlockComment = false
			}
			continue
		}
		if t == "" || strings.HasPrefix(t, "//") {
			continue
		}
		if strings.HasPrefix(t, "/*") && !strings.Contains(t, "*/") {
			inBlockComment = true
			continue
		}
		m.CodeLines++

		if funcStartRe.MatchString(line) {
			stack = append(stack, funcFrame{start: lineNo, entry: depth})
		}
		for _, ch := range t {
			switch ch {
			case '{':
				depth++
				if depth > m.MaxNesting {
					m.MaxNesting = depth
				}
				if len(stack) > 0 {
					stack[len(stack)-1].opened = true
				}
			case '}':
				depth--
				if len(stack) > 0 && stack[len(stack)-1].opened && depth <= stack[len(stack)-1].entry {
					closeFrame(lineNo)
				}
			}
		}
	}
	for len(stack) > 0 {
		closeFrame(m.Lines)
	}
	return m
}

// measureIndent handles python, where blocks are indentation. Nesting counts
// four-space units; a function ends at the first code line indented at or
// below its def.
func measureIndent(relPath, src string) FileComplexity {
	m := FileComplexity{File: relPath}
	var stack []funcFrame // entry holds the def line's indent

	lines := strings.Split(src, "\n")
	m.Lines = len(lines)
	if strings.HasSuffix(src, "\n") {
		m.Lines--
	}

	lastCode := 0
	closeFrame := func(line int) {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		m.Functions++
		if n := line - top.start + 1; n > m.LongestFunction {
			m.LongestFunction = n
		}
	}

	for i, line := range lines {
		lineNo := i + 1
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		m.CodeLines++

		indent := indentWidth(line)
		if nest := indent / 4; nest > m.MaxNesting {
			m.MaxNesting = nest
		}
		for len(stack) > 0 && indent <= stack[len(stack)-1].entry {
			closeFrame(lastCode)
		}
		if strings.HasPrefix(t, "def ") || strings.HasPrefix(t, "async def ") {
			stack = append(stack, funcFrame{start: lineNo, entry: indent})
		}
		lastCode = lineNo
	}
	for len(stack) > 0 {
		closeFrame(lastCode)
	}
	return m
}

func indentWidth(line string) int {
	w := 0
	for _, ch := range line {
		switch ch {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}
