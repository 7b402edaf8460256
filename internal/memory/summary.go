package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"codescope/internal/errs"
)

// SessionSummary aggregates one session's observations.
type SessionSummary struct {
	SessionID    string                  `json:"session_id"`
	Observations int                     `json:"observations"`
	ByType       map[ObservationType]int `json:"by_type"`
	FirstAt      int64                   `json:"first_at"`
	LastAt       int64                   `json:"last_at"`
	Repos        []string                `json:"repos,omitempty"`
	Branches     []string                `json:"branches,omitempty"`
}

// Summarize aggregates the session's observations into counts and spans.
func (s *Store) Summarize(ctx context.Context, sessionID string) (SessionSummary, error) {
	var rows []obsRow
	err := s.db.SelectContext(ctx, &rows,
		selectObs+" WHERE session_id = ? ORDER BY created_at, id", sessionID)
	if err != nil {
		return SessionSummary{}, errs.Wrap(errs.KindDatabase, "memory.summarize", err)
	}
	if len(rows) == 0 {
		return SessionSummary{}, errs.NotFound("session", sessionID)
	}

	sum := SessionSummary{
		SessionID: sessionID,
		ByType:    make(map[ObservationType]int),
		FirstAt:   rows[0].CreatedAt,
		LastAt:    rows[len(rows)-1].CreatedAt,
	}
	repos := make(map[string]bool)
	branches := make(map[string]bool)
	for _, r := range rows {
		sum.Observations++
		sum.ByType[ObservationType(r.Type)]++
		if r.RepoID != "" {
			repos[r.RepoID] = true
		}
		if r.Branch != "" {
			branches[r.Branch] = true
		}
	}
	sum.Repos = sortedKeys(repos)
	sum.Branches = sortedKeys(branches)
	return sum, nil
}

// CreateSummaryObservation renders the session summary as markdown and stores
// it back as a Summary observation in the same session. Calling it twice for
// an unchanged session dedups to the same record.
func (s *Store) CreateSummaryObservation(ctx context.Context, sessionID string) (StoreResult, error) {
	sum, err := s.Summarize(ctx, sessionID)
	if err != nil {
		return StoreResult{}, err
	}
	return s.Store(ctx, StoreRequest{
		Content: sum.Markdown(),
		Type:    TypeSummary,
		Tags:    []string{"session-summary"},
		Meta:    Meta{SessionID: sessionID},
	})
}

// Markdown renders the summary as a short report.
func (sum SessionSummary) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Session %s\n\n", sum.SessionID)
	fmt.Fprintf(&b, "- Observations: %d\n", sum.Observations)
	fmt.Fprintf(&b, "- Span: %s to %s\n",
		time.Unix(sum.FirstAt, 0).UTC().Format(time.RFC3339),
		time.Unix(sum.LastAt, 0).UTC().Format(time.RFC3339))

	types := make([]string, 0, len(sum.ByType))
	for t := range sum.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(&b, "- %s: %d\n", t, sum.ByType[ObservationType(t)])
	}
	if len(sum.Repos) > 0 {
		fmt.Fprintf(&b, "- Repos: %s\n", strings.Join(sum.Repos, ", "))
	}
	if len(sum.Branches) > 0 {
		fmt.Fprintf(&b, "- Branches: %s\n", strings.Join(sum.Branches, ", "))
	}
	return b.String()
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
