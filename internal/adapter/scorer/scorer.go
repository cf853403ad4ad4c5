// Package scorer implements domain.Scorer as an in-process logistic-style
// classifier over the 4-feature moderation vector, parameterized by a YAML
// model artifact (weights and bias).
package scorer

import (
	"context"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blausher/modsvc/internal/domain"
)

// Model is the serialized shape of the scorer's coefficients file.
type Model struct {
	Weights [4]float64 `yaml:"weights"`
	Bias    float64    `yaml:"bias"`
}

// LinearScorer scores a FeatureVector with a fixed logistic model, loaded
// once at startup from a YAML artifact. A LinearScorer with no Model loaded
// reports domain.ErrScorerNotLoaded rather than scoring with zero weights.
type LinearScorer struct {
	model *Model
}

// NewLinearScorer constructs an unloaded LinearScorer.
func NewLinearScorer() *LinearScorer {
	return &LinearScorer{}
}

// LoadModel reads and parses the YAML model artifact at path.
func (s *LinearScorer) LoadModel(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("op=scorer.LoadModel: %w", err)
	}
	var m Model
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("op=scorer.LoadModel: %w", err)
	}
	s.model = &m
	return nil
}

// Score implements domain.Scorer.
func (s *LinearScorer) Score(_ context.Context, features [4]float64) (float64, error) {
	if s.model == nil {
		return 0, domain.ErrScorerNotLoaded
	}
	z := s.model.Bias
	for i, w := range s.model.Weights {
		z += w * features[i]
	}
	p := sigmoid(z)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("op=scorer.Score: %w: non-finite probability", domain.ErrScorerFailed)
	}
	return p, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
