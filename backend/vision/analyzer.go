// Package vision scores how polluted (or how clean) a photo looks.
//
// Two strategies exist: a remote tag/object-detection backend and a random
// heuristic used when the backend is not configured or a call fails. Every
// Assessment carries the name of the strategy that produced it.
package vision

import (
	"context"
	"fmt"
)

type Strategy string

const (
	StrategyRemote    Strategy = "remote-vision"
	StrategyHeuristic Strategy = "heuristic-fallback"
)

// Assessment is a 0..100 content score and its producing strategy.
type Assessment struct {
	Score    int      `json:"score"`
	Strategy Strategy `json:"strategy"`
}

// Analyzer is one scoring strategy.
type Analyzer interface {
	Dirtiness(ctx context.Context, image []byte) (int, error)
	Cleanliness(ctx context.Context, image []byte) (int, error)
	Strategy() Strategy
}

// RemoteAnalysisError wraps any transport or service failure of the remote
// backend, including timeouts.
type RemoteAnalysisError struct {
	Op  string
	Err error
}

func (e *RemoteAnalysisError) Error() string {
	return fmt.Sprintf("remote vision %s failed: %v", e.Op, e.Err)
}

func (e *RemoteAnalysisError) Unwrap() error {
	return e.Err
}
