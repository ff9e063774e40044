// Package pipeline turns uploaded photos into pollution reports and decides
// whether a later photo proves the spot was cleaned up.
package pipeline

import (
	"math/rand/v2"
	"time"

	"github.com/apex/log"
)

const (
	DefaultReportMatchKm  = 0.2
	DefaultCleanupMatchKm = 0.05
	MinCleanliness        = 60

	RoutingKeyCreated  = "report.created"
	RoutingKeyResolved = "report.resolved"
)

type Pipeline struct {
	store    Store
	ledger   Ledger
	analyzer ContentAnalyzer

	publisher   Publisher
	createdKey  string
	resolvedKey string

	reportMatchKm  float64
	cleanupMatchKm float64
	strict         bool

	intN func(n int) int
	now  func() time.Time
}

type Option func(*Pipeline)

// WithStrictVerification withholds resolution and reward from cleanups that
// fail verification. Off by default.
func WithStrictVerification(strict bool) Option {
	return func(p *Pipeline) { p.strict = strict }
}

func WithReportMatchKm(km float64) Option {
	return func(p *Pipeline) {
		if km > 0 {
			p.reportMatchKm = km
		}
	}
}

// WithCleanupMatchKm sets the inclusive same-spot tolerance.
func WithCleanupMatchKm(km float64) Option {
	return func(p *Pipeline) {
		if km > 0 {
			p.cleanupMatchKm = km
		}
	}
}

func WithPublisher(pub Publisher, createdKey, resolvedKey string) Option {
	return func(p *Pipeline) {
		p.publisher = pub
		if createdKey != "" {
			p.createdKey = createdKey
		}
		if resolvedKey != "" {
			p.resolvedKey = resolvedKey
		}
	}
}

func WithRand(intN func(n int) int) Option {
	return func(p *Pipeline) { p.intN = intN }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(store Store, ledger Ledger, analyzer ContentAnalyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:          store,
		ledger:         ledger,
		analyzer:       analyzer,
		createdKey:     RoutingKeyCreated,
		resolvedKey:    RoutingKeyResolved,
		reportMatchKm:  DefaultReportMatchKm,
		cleanupMatchKm: DefaultCleanupMatchKm,
		intN:           rand.IntN,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) publish(routingKey string, message interface{}) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishWithRoutingKey(routingKey, message); err != nil {
		log.Errorf("Failed to publish %s event: %v", routingKey, err)
	}
}
