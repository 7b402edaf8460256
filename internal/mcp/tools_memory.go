package mcp

import (
	"context"

	"codescope/internal/memory"

	"github.com/mark3labs/mcp-go/mcp"
)

func storeObservationTool() mcp.Tool {
	return mcp.NewTool("store_observation",
		mcp.WithDescription("Persist an observation in semantic memory. Duplicate content within the same session returns the existing id."),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Observation text (at most 10000 characters)"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Observation type"),
			mcp.Enum("code", "decision", "context", "error", "summary", "execution", "quality_gate"),
		),
		mcp.WithArray("tags",
			mcp.Description("Free-form tags"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("session_id", mcp.Description("Originating session")),
		mcp.WithString("repo_id", mcp.Description("Repository the observation concerns")),
		mcp.WithString("branch", mcp.Description("Branch the observation concerns")),
		mcp.WithString("commit", mcp.Description("Commit the observation concerns")),
		mcp.WithString("file_path", mcp.Description("File the observation concerns")),
	)
}

func searchMemoriesTool() mcp.Tool {
	return mcp.NewTool("search_memories",
		mcp.WithDescription("Semantically search stored observations, optionally filtered by session, repo, branch, type, or tag."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 10)")),
		mcp.WithString("session_id", mcp.Description("Restrict to one session")),
		mcp.WithString("repo_id", mcp.Description("Restrict to one repository")),
		mcp.WithString("branch", mcp.Description("Restrict to one branch")),
		mcp.WithString("type", mcp.Description("Restrict to one observation type")),
		mcp.WithString("tag", mcp.Description("Restrict to observations carrying this tag")),
	)
}

func getSessionSummaryTool() mcp.Tool {
	return mcp.NewTool("get_session_summary",
		mcp.WithDescription("Aggregate one session's observations into a summary report."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to summarize")),
	)
}

func createSessionSummaryTool() mcp.Tool {
	return mcp.NewTool("create_session_summary",
		mcp.WithDescription("Aggregate one session's observations and store the report as a summary observation."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to summarize")),
	)
}

type storeReport struct {
	ID           string `json:"id"`
	Deduplicated bool   `json:"deduplicated"`
}

func (s *Server) handleStoreObservation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.deps.Memory.Store(ctx, memory.StoreRequest{
		Content: req.GetString("content", ""),
		Type:    memory.ObservationType(req.GetString("type", "")),
		Tags:    req.GetStringSlice("tags", nil),
		Meta: memory.Meta{
			SessionID: req.GetString("session_id", ""),
			RepoID:    req.GetString("repo_id", ""),
			Branch:    req.GetString("branch", ""),
			Commit:    req.GetString("commit", ""),
			FilePath:  req.GetString("file_path", ""),
		},
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(storeReport{ID: res.ID, Deduplicated: res.Deduplicated}), nil
}

func (s *Server) handleSearchMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if err := checkQuery(query); err != nil {
		return toolError(err), nil
	}
	filter := &memory.Filter{
		SessionID: req.GetString("session_id", ""),
		RepoID:    req.GetString("repo_id", ""),
		Branch:    req.GetString("branch", ""),
		Type:      memory.ObservationType(req.GetString("type", "")),
		Tag:       req.GetString("tag", ""),
	}
	results, err := s.deps.Memory.Search(ctx, query, filter, req.GetInt("limit", 10))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) handleGetSessionSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	sum, err := s.deps.Memory.Summarize(ctx, sessionID)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(sum.Markdown()), nil
}

func (s *Server) handleCreateSessionSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	res, err := s.deps.Memory.CreateSummaryObservation(ctx, sessionID)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(storeReport{ID: res.ID, Deduplicated: res.Deduplicated}), nil
}
