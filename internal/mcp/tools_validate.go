package mcp

import (
	"context"
	"sort"

	"codescope/internal/errs"
	"codescope/internal/validate"

	"github.com/mark3labs/mcp-go/mcp"
)

func validateArchitectureTool() mcp.Tool {
	return mcp.NewTool("validate_architecture",
		mcp.WithDescription("Run the full rule catalog over a source tree and report layering and quality violations."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path", mcp.Required(), mcp.Description("Root of the source tree to validate")),
	)
}

func validateFileTool() mcp.Tool {
	return mcp.NewTool("validate_file",
		mcp.WithDescription("Run the rule catalog over a single file inside a source tree."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path", mcp.Required(), mcp.Description("Root of the source tree")),
		mcp.WithString("file", mcp.Required(), mcp.Description("File to validate, relative to the root")),
	)
}

func listValidatorsTool() mcp.Tool {
	return mcp.NewTool("list_validators",
		mcp.WithDescription("List the loaded validation rules with their category and severity."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func getValidationRulesTool() mcp.Tool {
	return mcp.NewTool("get_validation_rules",
		mcp.WithDescription("Return full rule definitions, optionally filtered by id or category."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("id", mcp.Description("Single rule id, e.g. CA009")),
		mcp.WithString("category", mcp.Description("Rule category filter")),
	)
}

func analyzeComplexityTool() mcp.Tool {
	return mcp.NewTool("analyze_complexity",
		mcp.WithDescription("Measure per-file structural complexity: lines, functions, longest function, nesting depth."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path", mcp.Required(), mcp.Description("Root of the source tree")),
		mcp.WithNumber("limit", mcp.Description("Report the N most complex files (default 10)")),
	)
}

type violationReport struct {
	RuleID     string `json:"rule_id"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	File       string `json:"file"`
	Line       int    `json:"line,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

type validationReport struct {
	Path       string            `json:"path"`
	Violations []violationReport `json:"violations"`
	Count      int               `json:"count"`
}

func violationsToReport(path string, vs []validate.Violation) validationReport {
	report := validationReport{Path: path, Violations: make([]violationReport, len(vs)), Count: len(vs)}
	for i, v := range vs {
		report.Violations[i] = violationReport{
			RuleID:     v.ID(),
			Category:   string(v.Category()),
			Severity:   string(v.Severity()),
			File:       v.File(),
			Line:       v.Line(),
			Message:    v.Display(),
			Suggestion: v.Suggestion(),
		}
	}
	return report
}

func (s *Server) handleValidateArchitecture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := req.GetString("path", "")
	if err := checkPath("path", root); err != nil {
		return toolError(err), nil
	}
	inventory, err := validate.BuildInventory(root)
	if err != nil {
		return toolError(err), nil
	}
	vs, err := validate.NewScanner(s.deps.Rules).Scan(ctx, inventory)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(violationsToReport(root, vs)), nil
}

func (s *Server) handleValidateFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := req.GetString("path", "")
	file := req.GetString("file", "")
	if err := checkPath("path", root); err != nil {
		return toolError(err), nil
	}
	if err := checkPath("file", file); err != nil {
		return toolError(err), nil
	}
	inventory, err := validate.BuildInventory(root)
	if err != nil {
		return toolError(err), nil
	}
	for _, f := range inventory {
		if f.RelPath != file {
			continue
		}
		vs, err := validate.NewScanner(s.deps.Rules).ScanFile(ctx, f)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(violationsToReport(file, vs)), nil
	}
	return toolError(errs.NotFound("file", file)), nil
}

type validatorSummary struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
	MatcherType string `json:"matcher_type"`
}

func (s *Server) handleListValidators(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules := s.deps.Rules.Rules()
	out := make([]validatorSummary, len(rules))
	for i, r := range rules {
		out[i] = validatorSummary{
			ID:          r.ID,
			Category:    string(r.Category),
			Severity:    string(r.Severity),
			Description: r.Description,
			MatcherType: string(r.Matcher.Type),
		}
	}
	return jsonResult(out), nil
}

type ruleDetail struct {
	validatorSummary
	Pattern    string `json:"pattern,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Check      string `json:"check,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	TestFiles  bool   `json:"test_files,omitempty"`
	Exceptions int    `json:"exceptions,omitempty"`
}

func ruleToDetail(r validate.Rule) ruleDetail {
	return ruleDetail{
		validatorSummary: validatorSummary{
			ID:          r.ID,
			Category:    string(r.Category),
			Severity:    string(r.Severity),
			Description: r.Description,
			MatcherType: string(r.Matcher.Type),
		},
		Pattern:    r.Matcher.Pattern,
		Scope:      r.Matcher.Scope,
		Kind:       r.Matcher.Kind,
		Check:      r.Matcher.Check,
		Suggestion: r.Suggestion,
		TestFiles:  r.TestFiles,
		Exceptions: len(r.Exceptions),
	}
}

func (s *Server) handleGetValidationRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("id", ""); id != "" {
		r, ok := s.deps.Rules.Get(id)
		if !ok {
			return toolError(errs.NotFound("rule", id)), nil
		}
		return jsonResult(ruleToDetail(r)), nil
	}
	category := req.GetString("category", "")
	var out []ruleDetail
	for _, r := range s.deps.Rules.Rules() {
		if category != "" && string(r.Category) != category {
			continue
		}
		out = append(out, ruleToDetail(r))
	}
	if len(out) == 0 {
		return toolError(errs.NotFound("category", category)), nil
	}
	return jsonResult(out), nil
}

type complexityReport struct {
	Path  string                    `json:"path"`
	Files []validate.FileComplexity `json:"files"`
}

func (s *Server) handleAnalyzeComplexity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := req.GetString("path", "")
	limit := req.GetInt("limit", 10)
	if err := checkPath("path", root); err != nil {
		return toolError(err), nil
	}
	inventory, err := validate.BuildInventory(root)
	if err != nil {
		return toolError(err), nil
	}
	metrics, err := validate.AnalyzeComplexity(inventory)
	if err != nil {
		return toolError(err), nil
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Lines != metrics[j].Lines {
			return metrics[i].Lines > metrics[j].Lines
		}
		return metrics[i].File < metrics[j].File
	})
	if len(metrics) > limit {
		metrics = metrics[:limit]
	}
	return jsonResult(complexityReport{Path: root, Files: metrics}), nil
}
