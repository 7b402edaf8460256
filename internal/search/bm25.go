package search

import (
	"math"
	"strings"
	"sync"
)

// BM25 parameters. Configured constants per the retrieval defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// SparseIndex is an in-memory term-frequency index over one collection's
// chunk contents, scored with BM25.
type SparseIndex struct {
	mu         sync.RWMutex
	docs       map[string]map[string]int // doc id → term → frequency
	docLen     map[string]int
	df         map[string]int // term → number of docs containing it
	totalLen   int
	generation uint64
}

// NewSparseIndex creates an empty index.
func NewSparseIndex() *SparseIndex {
	return &SparseIndex{
		docs:   make(map[string]map[string]int),
		docLen: make(map[string]int),
		df:     make(map[string]int),
	}
}

// Add indexes a document's content under id, replacing any previous entry.
func (s *SparseIndex) Add(id, content string) {
	terms := Tokenize(content)
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
	s.docs[id] = tf
	s.docLen[id] = len(terms)
	s.totalLen += len(terms)
	for t := range tf {
		s.df[t]++
	}
	s.generation++
}

// Remove drops a document from the index.
func (s *SparseIndex) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
	s.generation++
}

func (s *SparseIndex) removeLocked(id string) {
	tf, ok := s.docs[id]
	if !ok {
		return
	}
	for t := range tf {
		if s.df[t]--; s.df[t] <= 0 {
			delete(s.df, t)
		}
	}
	s.totalLen -= s.docLen[id]
	delete(s.docs, id)
	delete(s.docLen, id)
}

// Len returns the number of indexed documents.
func (s *SparseIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Generation increments on every mutation; the result cache uses it to
// invalidate entries computed against a stale index.
func (s *SparseIndex) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Score computes BM25 scores for the query against the given candidate doc
// ids. Candidates missing from the index score zero.
func (s *SparseIndex) Score(query string, candidates []string) map[string]float64 {
	terms := Tokenize(query)
	scores := make(map[string]float64, len(candidates))
	if len(terms) == 0 {
		return scores
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.docs)
	if n == 0 {
		return scores
	}
	avgLen := float64(s.totalLen) / float64(n)
	if avgLen == 0 {
		return scores
	}

	for _, id := range candidates {
		tf, ok := s.docs[id]
		if !ok {
			scores[id] = 0
			continue
		}
		var score float64
		dl := float64(s.docLen[id])
		for _, t := range terms {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			df := float64(s.df[t])
			idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
			score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*dl/avgLen))
		}
		scores[id] = score
	}
	return scores
}

// Tokenize lowercases and splits on non-alphanumeric runes. Shared by the
// sparse index and the static test embedder so their vocabularies agree.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	})
}
