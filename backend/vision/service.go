package vision

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"

	"vukamap/backend/metrics"
)

const DefaultTimeout = 10 * time.Second

// Service is the content analyzer used by the pipelines. The strategy is fixed
// at construction: a nil primary means heuristic only. With a primary, each
// call that fails or exceeds the timeout is answered by the heuristic instead.
type Service struct {
	primary  Analyzer
	fallback *HeuristicAnalyzer
	timeout  time.Duration
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithFallback(h *HeuristicAnalyzer) Option {
	return func(s *Service) {
		if h != nil {
			s.fallback = h
		}
	}
}

func NewService(primary Analyzer, opts ...Option) *Service {
	s := &Service{
		primary:  primary,
		fallback: NewHeuristicAnalyzer(),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if primary == nil {
		log.Warn("Remote vision backend not configured. Using fallback analysis.")
	} else {
		log.Infof("Remote vision backend enabled (timeout %v)", s.timeout)
	}
	return s
}

// Strategy is the configured primary strategy.
func (s *Service) Strategy() Strategy {
	if s.primary == nil {
		return StrategyHeuristic
	}
	return s.primary.Strategy()
}

func (s *Service) AnalyzeDirtiness(ctx context.Context, image []byte) Assessment {
	return s.analyze(ctx, "dirtiness", image, Analyzer.Dirtiness, s.fallback.dirtiness)
}

func (s *Service) AnalyzeCleanliness(ctx context.Context, image []byte) Assessment {
	return s.analyze(ctx, "cleanliness", image, Analyzer.Cleanliness, s.fallback.cleanliness)
}

type scoreFunc func(a Analyzer, ctx context.Context, image []byte) (int, error)

func (s *Service) analyze(ctx context.Context, kind string, image []byte, remote scoreFunc, fallback func() int) Assessment {
	if s.primary == nil {
		return s.fallBack(kind, "not_configured", fallback)
	}

	start := time.Now()
	score, err := s.callPrimary(ctx, image, remote)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.RemoteDurationSeconds.WithLabelValues(kind, reason).Observe(time.Since(start).Seconds())
		log.WithError(err).Warnf("Remote %s analysis failed, using fallback", kind)
		return s.fallBack(kind, reason, fallback)
	}
	metrics.RemoteDurationSeconds.WithLabelValues(kind, "ok").Observe(time.Since(start).Seconds())

	strategy := s.primary.Strategy()
	metrics.AnalysesTotal.WithLabelValues(kind, string(strategy)).Inc()
	return Assessment{Score: score, Strategy: strategy}
}

type result struct {
	score int
	err   error
}

// callPrimary bounds the remote call by the service timeout even when the
// backend ignores its context.
func (s *Service) callPrimary(ctx context.Context, image []byte, remote scoreFunc) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		score, err := remote(s.primary, ctx, image)
		done <- result{score, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			var remoteErr *RemoteAnalysisError
			if !errors.As(r.err, &remoteErr) {
				r.err = &RemoteAnalysisError{Op: "analyze", Err: r.err}
			}
		}
		return r.score, r.err
	case <-ctx.Done():
		return 0, &RemoteAnalysisError{Op: "analyze", Err: ctx.Err()}
	}
}

func (s *Service) fallBack(kind, reason string, fallback func() int) Assessment {
	metrics.FallbacksTotal.WithLabelValues(kind, reason).Inc()
	metrics.AnalysesTotal.WithLabelValues(kind, string(StrategyHeuristic)).Inc()
	return Assessment{Score: fallback(), Strategy: StrategyHeuristic}
}
