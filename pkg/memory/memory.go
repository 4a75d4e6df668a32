// Package memory implements the adaptive retention core of Memtide:
// multi-factor decay scoring, entity-overlap clustering, and BM25 sparse
// lexical scoring over conversational memory items.
package memory

import (
	"errors"
)

// Sentinel errors for the memory engine.
var (
	ErrInvalidUserID   = errors.New("memory: invalid user ID")
	ErrInvalidMemoryID = errors.New("memory: invalid memory ID")
	ErrEmptyCorpus     = errors.New("memory: empty document corpus")
	ErrNilVocabulary   = errors.New("memory: nil vocabulary")
)
