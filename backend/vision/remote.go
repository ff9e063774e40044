package vision

import (
	"context"
	"fmt"

	"github.com/apex/log"
)

// Feature names a detection pass requested from a Backend.
type Feature string

const (
	FeatureTags        Feature = "Tags"
	FeatureObjects     Feature = "Objects"
	FeatureDescription Feature = "Description"
)

type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Detection is what a Backend saw in an image.
type Detection struct {
	Tags    []Label `json:"tags"`
	Objects []Label `json:"objects"`
}

// Backend is a remote tag/object-detection service.
type Backend interface {
	Analyze(ctx context.Context, image []byte, features ...Feature) (*Detection, error)
}

// RemoteAnalyzer scores images from a Backend's detections.
type RemoteAnalyzer struct {
	backend Backend
}

func NewRemoteAnalyzer(backend Backend) *RemoteAnalyzer {
	return &RemoteAnalyzer{backend: backend}
}

func (a *RemoteAnalyzer) Strategy() Strategy {
	return StrategyRemote
}

func (a *RemoteAnalyzer) Dirtiness(ctx context.Context, image []byte) (int, error) {
	d, err := a.detect(ctx, "dirtiness", image, FeatureTags, FeatureObjects, FeatureDescription)
	if err != nil {
		return 0, err
	}
	score := DirtinessScore(d)
	log.Infof("Remote dirtiness analysis: %d tags, %d objects, dirtiness=%d%%", len(d.Tags), len(d.Objects), score)
	return score, nil
}

func (a *RemoteAnalyzer) Cleanliness(ctx context.Context, image []byte) (int, error) {
	d, err := a.detect(ctx, "cleanliness", image, FeatureTags, FeatureObjects)
	if err != nil {
		return 0, err
	}
	score := CleanlinessScore(d)
	log.Infof("Remote cleanliness analysis: %d tags, %d objects, cleanliness=%d%%", len(d.Tags), len(d.Objects), score)
	return score, nil
}

func (a *RemoteAnalyzer) detect(ctx context.Context, op string, image []byte, features ...Feature) (*Detection, error) {
	d, err := a.backend.Analyze(ctx, image, features...)
	if err != nil {
		return nil, &RemoteAnalysisError{Op: op, Err: err}
	}
	if d == nil {
		return nil, &RemoteAnalysisError{Op: op, Err: fmt.Errorf("empty detection result")}
	}
	return d, nil
}
