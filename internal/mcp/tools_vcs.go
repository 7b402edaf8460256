package mcp

import (
	"context"
	"sort"
	"strings"

	"codescope/internal/errs"

	"github.com/mark3labs/mcp-go/mcp"
)

// vcsSeparator joins repo and branch into a collection name. Branch scoping
// is collection naming: one collection per (repo, branch) pair.
const vcsSeparator = "__"

// maxImpactChunks caps how many chunks of the changed file seed the impact
// search.
const maxImpactChunks = 5

// vcsCollection names the collection holding one branch of one repository.
func vcsCollection(repo, branch string) string {
	return repo + vcsSeparator + branch
}

func indexVCSRepositoryTool() mcp.Tool {
	return mcp.NewTool("index_vcs_repository",
		mcp.WithDescription("Index a checked-out repository branch into its own collection, named repo__branch."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Directory holding the checked-out branch"),
		),
		mcp.WithString("repo",
			mcp.Required(),
			mcp.Description("Repository identifier ([A-Za-z0-9_-]{1,48})"),
		),
		mcp.WithString("branch",
			mcp.Required(),
			mcp.Description("Branch identifier ([A-Za-z0-9_-]{1,48})"),
		),
	)
}

func searchBranchTool() mcp.Tool {
	return mcp.NewTool("search_branch",
		mcp.WithDescription("Hybrid search scoped to one branch of one repository."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language or keyword query")),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository identifier")),
		mcp.WithString("branch", mcp.Required(), mcp.Description("Branch identifier")),
		mcp.WithNumber("k", mcp.Description("Maximum number of chunks to return (default 10)")),
	)
}

func listRepositoriesTool() mcp.Tool {
	return mcp.NewTool("list_repositories",
		mcp.WithDescription("List indexed repositories and their branches."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func compareBranchesTool() mcp.Tool {
	return mcp.NewTool("compare_branches",
		mcp.WithDescription("Compare the indexed file sets of two branches: files added, removed, and changed by content hash."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository identifier")),
		mcp.WithString("branch_a", mcp.Required(), mcp.Description("Base branch")),
		mcp.WithString("branch_b", mcp.Required(), mcp.Description("Branch to compare against the base")),
	)
}

func analyzeImpactTool() mcp.Tool {
	return mcp.NewTool("analyze_impact",
		mcp.WithDescription("Rank the files most semantically entangled with one file on a branch, as a proxy for change impact."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository identifier")),
		mcp.WithString("branch", mcp.Required(), mcp.Description("Branch identifier")),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("Indexed file path to analyze")),
		mcp.WithNumber("k", mcp.Description("Maximum number of impacted files to return (default 10)")),
	)
}

func checkRepoBranch(repo, branch string) error {
	if err := checkVCSPart("repo", repo); err != nil {
		return err
	}
	return checkVCSPart("branch", branch)
}

func (s *Server) handleIndexVCSRepository(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := req.GetString("path", "")
	repo := req.GetString("repo", "")
	branch := req.GetString("branch", "")
	if err := checkPath("path", root); err != nil {
		return toolError(err), nil
	}
	if err := checkRepoBranch(repo, branch); err != nil {
		return toolError(err), nil
	}
	return s.runIndex(ctx, root, vcsCollection(repo, branch))
}

func (s *Server) handleSearchBranch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	repo := req.GetString("repo", "")
	branch := req.GetString("branch", "")
	k := req.GetInt("k", 10)
	if err := checkQuery(query); err != nil {
		return toolError(err), nil
	}
	if err := checkRepoBranch(repo, branch); err != nil {
		return toolError(err), nil
	}
	return s.runSearch(ctx, vcsCollection(repo, branch), query, k)
}

type repositoryReport struct {
	Repo     string   `json:"repo"`
	Branches []string `json:"branches"`
}

func (s *Server) handleListRepositories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collections, err := s.deps.Catalog.Collections(ctx)
	if err != nil {
		return toolError(err), nil
	}
	byRepo := make(map[string][]string)
	for _, c := range collections {
		repo, branch, ok := strings.Cut(c, vcsSeparator)
		if !ok {
			continue // plain collection, not branch-scoped
		}
		byRepo[repo] = append(byRepo[repo], branch)
	}
	repos := make([]repositoryReport, 0, len(byRepo))
	for repo, branches := range byRepo {
		sort.Strings(branches)
		repos = append(repos, repositoryReport{Repo: repo, Branches: branches})
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Repo < repos[j].Repo })
	return jsonResult(repos), nil
}

type branchDiff struct {
	Repo    string   `json:"repo"`
	BranchA string   `json:"branch_a"`
	BranchB string   `json:"branch_b"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
}

func (s *Server) handleCompareBranches(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo := req.GetString("repo", "")
	branchA := req.GetString("branch_a", "")
	branchB := req.GetString("branch_b", "")
	if err := checkVCSPart("repo", repo); err != nil {
		return toolError(err), nil
	}
	if err := checkVCSPart("branch_a", branchA); err != nil {
		return toolError(err), nil
	}
	if err := checkVCSPart("branch_b", branchB); err != nil {
		return toolError(err), nil
	}

	filesA, err := s.deps.Catalog.Files(ctx, vcsCollection(repo, branchA))
	if err != nil {
		return toolError(err), nil
	}
	filesB, err := s.deps.Catalog.Files(ctx, vcsCollection(repo, branchB))
	if err != nil {
		return toolError(err), nil
	}
	if len(filesA) == 0 && len(filesB) == 0 {
		return toolError(errs.NotFound("repository", repo)), nil
	}

	hashA := make(map[string]string, len(filesA))
	for _, f := range filesA {
		hashA[f.Path] = f.Hash
	}
	diff := branchDiff{
		Repo: repo, BranchA: branchA, BranchB: branchB,
		Added: []string{}, Removed: []string{}, Changed: []string{},
	}
	seenB := make(map[string]bool, len(filesB))
	for _, f := range filesB {
		seenB[f.Path] = true
		prev, ok := hashA[f.Path]
		switch {
		case !ok:
			diff.Added = append(diff.Added, f.Path)
		case prev != f.Hash:
			diff.Changed = append(diff.Changed, f.Path)
		}
	}
	for _, f := range filesA {
		if !seenB[f.Path] {
			diff.Removed = append(diff.Removed, f.Path)
		}
	}
	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Changed)
	return jsonResult(diff), nil
}

type impactedFile struct {
	FilePath string  `json:"file_path"`
	Score    float64 `json:"score"`
}

type impactReport struct {
	FilePath   string         `json:"file_path"`
	Collection string         `json:"collection"`
	Impacted   []impactedFile `json:"impacted"`
}

func (s *Server) handleAnalyzeImpact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo := req.GetString("repo", "")
	branch := req.GetString("branch", "")
	filePath := req.GetString("file_path", "")
	k := req.GetInt("k", 10)
	if err := checkRepoBranch(repo, branch); err != nil {
		return toolError(err), nil
	}
	if err := checkPath("file_path", filePath); err != nil {
		return toolError(err), nil
	}

	collection := vcsCollection(repo, branch)
	stats, err := s.deps.Store.GetStats(ctx, collection)
	if err != nil {
		return toolError(err), nil
	}
	all, err := s.deps.Store.ListVectors(ctx, collection, int(stats.Vectors))
	if err != nil {
		return toolError(err), nil
	}
	var seeds []string
	for _, v := range all {
		if v.FilePath == filePath {
			seeds = append(seeds, v.Content)
			if len(seeds) == maxImpactChunks {
				break
			}
		}
	}
	if len(seeds) == 0 {
		return toolError(errs.NotFound("file", filePath)), nil
	}

	// Score every other file by its best match against any chunk of the
	// changed file.
	best := make(map[string]float64)
	for _, seed := range seeds {
		results, err := s.deps.Engine.Search(ctx, collection, seed, k*2)
		if err != nil {
			return toolError(err), nil
		}
		for _, r := range results {
			if r.FilePath == filePath {
				continue
			}
			if r.Score > best[r.FilePath] {
				best[r.FilePath] = r.Score
			}
		}
	}
	impacted := make([]impactedFile, 0, len(best))
	for path, score := range best {
		impacted = append(impacted, impactedFile{FilePath: path, Score: score})
	}
	sort.Slice(impacted, func(i, j int) bool {
		if impacted[i].Score != impacted[j].Score {
			return impacted[i].Score > impacted[j].Score
		}
		return impacted[i].FilePath < impacted[j].FilePath
	})
	if len(impacted) > k {
		impacted = impacted[:k]
	}
	return jsonResult(impactReport{FilePath: filePath, Collection: collection, Impacted: impacted}), nil
}
