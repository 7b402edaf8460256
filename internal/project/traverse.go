package project

import (
	"context"

	"codescope/internal/errs"
)

// Traverse walks the dependency graph breadth-first from the given issue,
// bounded by maxDepth. Edges are deduplicated by edge id and nodes by issue
// id, so cyclic graphs terminate. The returned edges are in BFS enqueue
// order.
func (s *Store) Traverse(ctx context.Context, orgID, issueID string, maxDepth int) ([]Dependency, error) {
	if maxDepth < 0 {
		return nil, errs.Invalid("max_depth", "must not be negative")
	}
	if _, err := s.GetIssue(ctx, orgID, issueID); err != nil {
		return nil, err
	}

	type queued struct {
		issue string
		depth int
	}
	queue := []queued{{issue: issueID}}
	seenNodes := map[string]bool{issueID: true}
	seenEdges := map[string]bool{}
	var edges []Dependency

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		out, err := s.outgoing(ctx, orgID, cur.issue)
		if err != nil {
			return nil, err
		}
		for _, dep := range out {
			if seenEdges[dep.ID] {
				continue
			}
			seenEdges[dep.ID] = true
			edges = append(edges, dep)
			if !seenNodes[dep.ToIssue] {
				seenNodes[dep.ToIssue] = true
				queue = append(queue, queued{issue: dep.ToIssue, depth: cur.depth + 1})
			}
		}
	}
	return edges, nil
}

// outgoing returns the issue's outgoing dependency edges in stable order.
func (s *Store) outgoing(ctx context.Context, orgID, issueID string) ([]Dependency, error) {
	var out []Dependency
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM dependencies WHERE org_id = ? AND from_issue = ?
		ORDER BY to_issue, kind`, orgID, issueID)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "project.traverse", err)
	}
	return out, nil
}
