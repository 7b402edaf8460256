// Package memory stores agent observations: immutable, content-hashed notes
// keyed by session and VCS context, searchable through the hybrid engine and
// traversable as a chronological timeline.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"codescope/internal/errs"
)

// ObservationType classifies an observation. The set is closed.
type ObservationType string

const (
	TypeCode        ObservationType = "code"
	TypeDecision    ObservationType = "decision"
	TypeContext     ObservationType = "context"
	TypeError       ObservationType = "error"
	TypeSummary     ObservationType = "summary"
	TypeExecution   ObservationType = "execution"
	TypeQualityGate ObservationType = "quality_gate"
)

var validTypes = map[ObservationType]bool{
	TypeCode:        true,
	TypeDecision:    true,
	TypeContext:     true,
	TypeError:       true,
	TypeSummary:     true,
	TypeExecution:   true,
	TypeQualityGate: true,
}

// Valid reports whether t is one of the closed set.
func (t ObservationType) Valid() bool { return validTypes[t] }

// MaxContentChars bounds observation content length.
const MaxContentChars = 10000

// Meta is the optional session and VCS context of an observation.
type Meta struct {
	SessionID string `json:"session_id,omitempty"`
	RepoID    string `json:"repo_id,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Commit    string `json:"commit,omitempty"`
}

// Observation is the atomic unit of semantic memory. Observations are never
// mutated; retention sweeps are the only deletion path.
type Observation struct {
	ID          string          `json:"id"`
	Content     string          `json:"content"`
	Type        ObservationType `json:"observation_type"`
	Tags        []string        `json:"tags,omitempty"`
	ContentHash string          `json:"content_hash"`
	Meta        Meta            `json:"metadata"`
	CreatedAt   int64           `json:"created_at"` // seconds since epoch
}

// ContentHash digests the observation type together with the normalized
// content, so formatting-only differences dedup to the same record.
func ContentHash(t ObservationType, content string) string {
	h := sha256.New()
	h.Write([]byte(t))
	h.Write([]byte(normalize(content)))
	return hex.EncodeToString(h.Sum(nil))
}

// normalize collapses runs of whitespace and trims the ends.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// validateContent enforces the 1 to MaxContentChars character bound.
func validateContent(content string) error {
	n := len([]rune(content))
	switch {
	case n == 0:
		return errs.Invalid("content", "must not be empty")
	case n > MaxContentChars:
		return errs.Invalid("content", "exceeds 10000 characters")
	}
	return nil
}
