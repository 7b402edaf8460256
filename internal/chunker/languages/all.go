// Package languages registers tree-sitter grammars with a chunker registry.
package languages

import "codescope/internal/chunker"

// RegisterAll wires every bundled grammar plus the line-chunked fallback
// languages into the registry.
func RegisterAll(r *chunker.Registry) {
	RegisterGo(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterPython(r)
	RegisterRust(r)

	// Languages without a bundled grammar are still indexed via line windows.
	r.RegisterFallback("java", "java")
	r.RegisterFallback("c", "c", "h")
	r.RegisterFallback("cpp", "cpp", "cc", "cxx", "hpp")
	r.RegisterFallback("ruby", "rb")
	r.RegisterFallback("csharp", "cs")
	r.RegisterFallback("kotlin", "kt", "kts")
	r.RegisterFallback("swift", "swift")
	r.RegisterFallback("shell", "sh", "bash")
	r.RegisterFallback("sql", "sql")
	r.RegisterFallback("markdown", "md", "markdown")
	r.RegisterFallback("yaml", "yaml", "yml")
	r.RegisterFallback("toml", "toml")
}
