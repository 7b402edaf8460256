package memory

import (
	"context"

	"codescope/internal/errs"
)

// Timeline returns up to before predecessors, the anchor, and up to after
// successors, ordered by created_at ascending with ties broken by id.
// Predecessors and successors must satisfy the filter; the anchor always
// appears exactly once.
func (s *Store) Timeline(ctx context.Context, anchorID string, before, after int, filter *Filter) ([]Observation, error) {
	anchor, err := s.Get(ctx, anchorID)
	if err != nil {
		return nil, err
	}
	if before < 0 || after < 0 {
		return nil, errs.Invalid("depth", "must not be negative")
	}

	out := make([]Observation, 0, before+after+1)
	if before > 0 {
		prev, err := s.neighbors(ctx, anchor, before, filter, false)
		if err != nil {
			return nil, err
		}
		// Fetched newest-first; reverse into chronological order.
		for i := len(prev) - 1; i >= 0; i-- {
			out = append(out, prev[i])
		}
	}
	out = append(out, anchor)
	if after > 0 {
		next, err := s.neighbors(ctx, anchor, after, filter, true)
		if err != nil {
			return nil, err
		}
		out = append(out, next...)
	}
	return out, nil
}

// neighbors fetches observations strictly after (forward) or strictly before
// the anchor in (created_at, id) order.
func (s *Store) neighbors(ctx context.Context, anchor Observation, limit int, filter *Filter, forward bool) ([]Observation, error) {
	cmp := "(created_at < ? OR (created_at = ? AND id < ?))"
	order := "ORDER BY created_at DESC, id DESC"
	if forward {
		cmp = "(created_at > ? OR (created_at = ? AND id > ?))"
		order = "ORDER BY created_at ASC, id ASC"
	}

	query := selectObs + " WHERE " + cmp
	args := []any{anchor.CreatedAt, anchor.CreatedAt, anchor.ID}
	if cond, condArgs := filter.where(); cond != "" {
		query += " AND " + cond
		args = append(args, condArgs...)
	}
	query += " " + order + " LIMIT ?"
	args = append(args, limit)

	var rows []obsRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "memory.timeline", err)
	}
	out := make([]Observation, 0, len(rows))
	for _, r := range rows {
		obs, err := r.observation()
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}
