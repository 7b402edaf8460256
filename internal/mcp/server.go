// Package mcp exposes the tool protocol over stdio and streamable HTTP.
// Every tool validates its arguments before touching a port; failures come
// back as tool error results prefixed with the error kind.
package mcp

import (
	"log/slog"

	"codescope/internal/common"
	"codescope/internal/errs"
	"codescope/internal/event"
	"codescope/internal/index"
	"codescope/internal/limiter"
	"codescope/internal/memory"
	"codescope/internal/ops"
	"codescope/internal/provider"
	"codescope/internal/search"
	"codescope/internal/validate"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "codescope"
	serverVersion = "1.0.0"
)

// Deps are the components the tool handlers drive. Bus and Limiter are
// optional; everything else is required.
type Deps struct {
	Indexer *index.Indexer
	Engine  *search.Engine
	Store   provider.VectorStore
	Catalog *index.Catalog
	Memory  *memory.Store
	Rules   *validate.RuleSet
	Tracker *ops.Tracker
	Bus     *event.Bus
	Limiter *limiter.Limiter
}

// Server wires the tool handlers onto an MCP server.
type Server struct {
	deps Deps
	srv  *mcpserver.MCPServer
	log  *slog.Logger
}

// NewServer builds the server and registers the tool set.
func NewServer(deps Deps) (*Server, error) {
	switch {
	case deps.Indexer == nil:
		return nil, errs.E(errs.KindConfig, "mcp", "indexer is required")
	case deps.Engine == nil:
		return nil, errs.E(errs.KindConfig, "mcp", "search engine is required")
	case deps.Store == nil:
		return nil, errs.E(errs.KindConfig, "mcp", "vector store is required")
	case deps.Catalog == nil:
		return nil, errs.E(errs.KindConfig, "mcp", "catalog is required")
	case deps.Memory == nil:
		return nil, errs.E(errs.KindConfig, "mcp", "memory store is required")
	case deps.Rules == nil:
		return nil, errs.E(errs.KindConfig, "mcp", "rule set is required")
	case deps.Tracker == nil:
		return nil, errs.E(errs.KindConfig, "mcp", "operation tracker is required")
	}

	s := &Server{
		deps: deps,
		srv:  mcpserver.NewMCPServer(serverName, serverVersion, mcpserver.WithToolCapabilities(false)),
		log:  common.Component("mcp"),
	}
	s.register()
	return s, nil
}

func (s *Server) register() {
	s.srv.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.srv.AddTool(searchCodeTool(), s.handleSearchCode)
	s.srv.AddTool(indexingStatusTool(), s.handleIndexingStatus)
	s.srv.AddTool(clearIndexTool(), s.handleClearIndex)

	s.srv.AddTool(indexVCSRepositoryTool(), s.handleIndexVCSRepository)
	s.srv.AddTool(searchBranchTool(), s.handleSearchBranch)
	s.srv.AddTool(listRepositoriesTool(), s.handleListRepositories)
	s.srv.AddTool(compareBranchesTool(), s.handleCompareBranches)
	s.srv.AddTool(analyzeImpactTool(), s.handleAnalyzeImpact)

	s.srv.AddTool(storeObservationTool(), s.handleStoreObservation)
	s.srv.AddTool(searchMemoriesTool(), s.handleSearchMemories)
	s.srv.AddTool(getSessionSummaryTool(), s.handleGetSessionSummary)
	s.srv.AddTool(createSessionSummaryTool(), s.handleCreateSessionSummary)

	s.srv.AddTool(validateArchitectureTool(), s.handleValidateArchitecture)
	s.srv.AddTool(validateFileTool(), s.handleValidateFile)
	s.srv.AddTool(listValidatorsTool(), s.handleListValidators)
	s.srv.AddTool(getValidationRulesTool(), s.handleGetValidationRules)
	s.srv.AddTool(analyzeComplexityTool(), s.handleAnalyzeComplexity)
}

// ServeStdio blocks serving the protocol on stdin/stdout. Logging must
// already be routed to stderr.
func (s *Server) ServeStdio() error {
	s.log.Info("serving over stdio")
	return mcpserver.ServeStdio(s.srv)
}

// ServeHTTP blocks serving the streamable HTTP transport on addr.
func (s *Server) ServeHTTP(addr string) error {
	s.log.Info("serving over http", "addr", addr)
	return mcpserver.NewStreamableHTTPServer(s.srv).Start(addr)
}

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}
