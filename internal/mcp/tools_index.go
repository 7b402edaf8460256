package mcp

import (
	"context"

	"codescope/internal/errs"
	"codescope/internal/event"
	"codescope/internal/ops"
	"codescope/internal/provider"

	"github.com/mark3labs/mcp-go/mcp"
)

func indexCodebaseTool() mcp.Tool {
	return mcp.NewTool("index_codebase",
		mcp.WithDescription("Index a directory of source code into a named collection. Unchanged files are skipped on re-runs."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Directory to index"),
		),
		mcp.WithString("collection",
			mcp.Required(),
			mcp.Description("Target collection name ([A-Za-z0-9_-]{1,100})"),
		),
	)
}

func searchCodeTool() mcp.Tool {
	return mcp.NewTool("search_code",
		mcp.WithDescription("Hybrid semantic + keyword search over an indexed collection. Returns scored code chunks with file paths and line numbers."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query"),
		),
		mcp.WithString("collection",
			mcp.Required(),
			mcp.Description("Collection to search"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 10)"),
		),
	)
}

func indexingStatusTool() mcp.Tool {
	return mcp.NewTool("get_indexing_status",
		mcp.WithDescription("Report the status of a tracked indexing operation, or all tracked operations when no id is given."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("operation_id",
			mcp.Description("Operation id returned by index_codebase"),
		),
	)
}

func clearIndexTool() mcp.Tool {
	return mcp.NewTool("clear_index",
		mcp.WithDescription("Drop a collection's vectors, catalog entries, and sparse index."),
		mcp.WithString("collection",
			mcp.Required(),
			mcp.Description("Collection to clear"),
		),
	)
}

type indexReport struct {
	OperationID  string `json:"operation_id"`
	Collection   string `json:"collection"`
	FilesTotal   int    `json:"files_total"`
	FilesIndexed int    `json:"files_indexed"`
	FilesSkipped int    `json:"files_skipped"`
	FilesFailed  int    `json:"files_failed"`
	ChunksTotal  int    `json:"chunks_total"`
}

func (s *Server) handleIndexCodebase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := req.GetString("path", "")
	collection := req.GetString("collection", "")
	if err := checkPath("path", root); err != nil {
		return toolError(err), nil
	}
	if err := checkCollection(collection); err != nil {
		return toolError(err), nil
	}
	return s.runIndex(ctx, root, collection)
}

// runIndex is shared by index_codebase and index_vcs_repository.
func (s *Server) runIndex(ctx context.Context, root, collection string) (*mcp.CallToolResult, error) {
	stats, err := s.deps.Indexer.IndexDirectory(ctx, root, collection)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(indexReport{
		OperationID:  stats.OperationID,
		Collection:   collection,
		FilesTotal:   stats.FilesTotal,
		FilesIndexed: stats.FilesIndexed,
		FilesSkipped: stats.FilesSkipped,
		FilesFailed:  stats.FilesFailed,
		ChunksTotal:  stats.ChunksTotal,
	}), nil
}

type searchReport struct {
	Query      string                  `json:"query"`
	Collection string                  `json:"collection"`
	Results    []provider.SearchResult `json:"results"`
}

func (s *Server) handleSearchCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	collection := req.GetString("collection", "")
	k := req.GetInt("k", 10)
	if err := checkQuery(query); err != nil {
		return toolError(err), nil
	}
	if err := checkCollection(collection); err != nil {
		return toolError(err), nil
	}
	return s.runSearch(ctx, collection, query, k)
}

func (s *Server) runSearch(ctx context.Context, collection, query string, k int) (*mcp.CallToolResult, error) {
	if s.deps.Limiter != nil {
		permit, err := s.deps.Limiter.Acquire(ctx, "search")
		if err != nil {
			return toolError(err), nil
		}
		defer permit.Release()
	}
	results, err := s.deps.Engine.Search(ctx, collection, query, k)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(searchReport{Query: query, Collection: collection, Results: results}), nil
}

type operationReport struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Collection     string `json:"collection"`
	Status         string `json:"status"`
	TotalFiles     int    `json:"total_files"`
	ProcessedFiles int    `json:"processed_files"`
	FailedFiles    int    `json:"failed_files"`
	CurrentFile    string `json:"current_file,omitempty"`
	Error          string `json:"error,omitempty"`
	StartedAt      int64  `json:"started_at"`
	FinishedAt     int64  `json:"finished_at,omitempty"`
}

func operationToReport(op ops.Operation) operationReport {
	r := operationReport{
		ID:             op.ID,
		Kind:           string(op.Kind),
		Collection:     op.Collection,
		Status:         string(op.Status),
		TotalFiles:     op.TotalFiles,
		ProcessedFiles: op.ProcessedFiles,
		FailedFiles:    op.FailedFiles,
		CurrentFile:    op.CurrentFile,
		Error:          op.Error,
		StartedAt:      op.StartTime.Unix(),
	}
	if !op.EndTime.IsZero() {
		r.FinishedAt = op.EndTime.Unix()
	}
	return r
}

func (s *Server) handleIndexingStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("operation_id", "")
	if id != "" {
		op, ok := s.deps.Tracker.Get(id)
		if !ok {
			return toolError(errs.NotFound("operation", id)), nil
		}
		return jsonResult(operationToReport(op)), nil
	}
	all := s.deps.Tracker.List()
	reports := make([]operationReport, len(all))
	for i, op := range all {
		reports[i] = operationToReport(op)
	}
	return jsonResult(reports), nil
}

func (s *Server) handleClearIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collection := req.GetString("collection", "")
	if err := checkCollection(collection); err != nil {
		return toolError(err), nil
	}
	if err := s.deps.Indexer.ClearCollection(ctx, collection); err != nil {
		return toolError(err), nil
	}
	if s.deps.Bus != nil {
		s.deps.Bus.Publish(event.Event{Topic: event.TopicIndexClear, Collection: collection})
	}
	s.log.Info("collection cleared", "collection", collection)
	return jsonResult(map[string]string{"cleared": collection}), nil
}
