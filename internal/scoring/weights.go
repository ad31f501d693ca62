package scoring

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/selivandex/forecastr/internal/astro"
	"github.com/selivandex/forecastr/pkg/models"
)

// ComponentWeights are the fixed weights of the composite score. They must sum to 1.
// Technical and fundamental scores are informational and carry no weight.
type ComponentWeights struct {
	Confluence      float64 `yaml:"confluence"`
	Proximity       float64 `yaml:"proximity"`
	Momentum        float64 `yaml:"momentum"`
	Seasonal        float64 `yaml:"seasonal"`
	AspectAlignment float64 `yaml:"aspect_alignment"`
	Volatility      float64 `yaml:"volatility"`
	Trend           float64 `yaml:"trend"`
	Volume          float64 `yaml:"volume"`
}

// Sum adds all weights
func (w ComponentWeights) Sum() float64 {
	return w.Confluence + w.Proximity + w.Momentum + w.Seasonal +
		w.AspectAlignment + w.Volatility + w.Trend + w.Volume
}

// Total is the weighted sum of component scores
func (w ComponentWeights) Total(s models.Scores) float64 {
	return s.Confluence*w.Confluence +
		s.Proximity*w.Proximity +
		s.Momentum*w.Momentum +
		s.Seasonal*w.Seasonal +
		s.AspectAlignment*w.AspectAlignment +
		s.Volatility*w.Volatility +
		s.Trend*w.Trend +
		s.Volume*w.Volume
}

// WeightSet is a named scoring configuration: component weights plus the lunar favorability table
type WeightSet struct {
	Name         string                          `yaml:"name"`
	Weights      ComponentWeights                `yaml:"weights"`
	Favorability map[models.Favorability]float64 `yaml:"favorability"`
}

// DefaultWeights returns the built-in weight set
func DefaultWeights() WeightSet {
	fav := make(map[models.Favorability]float64, len(astro.DefaultFavorabilityWeights))
	for k, v := range astro.DefaultFavorabilityWeights {
		fav[k] = v
	}
	return WeightSet{
		Name: "default",
		Weights: ComponentWeights{
			Confluence:      0.25,
			Proximity:       0.20,
			Momentum:        0.15,
			Seasonal:        0.10,
			AspectAlignment: 0.05,
			Volatility:      0.10,
			Trend:           0.10,
			Volume:          0.05,
		},
		Favorability: fav,
	}
}

const weightTolerance = 1e-6

// Validate checks that weights are non-negative and sum to 1
func (ws WeightSet) Validate() error {
	w := ws.Weights
	for name, v := range map[string]float64{
		"confluence":       w.Confluence,
		"proximity":        w.Proximity,
		"momentum":         w.Momentum,
		"seasonal":         w.Seasonal,
		"aspect_alignment": w.AspectAlignment,
		"volatility":       w.Volatility,
		"trend":            w.Trend,
		"volume":           w.Volume,
	} {
		if v < 0 {
			return fmt.Errorf("weight set %q: %s weight is negative: %w", ws.Name, name, models.ErrConfiguration)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("weight set %q: weights sum to %.4f, want 1: %w", ws.Name, sum, models.ErrConfiguration)
	}
	for k, v := range ws.Favorability {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight set %q: favorability %s out of [0,1]: %w", ws.Name, k, models.ErrConfiguration)
		}
	}
	return nil
}

// LoadWeights reads a YAML weight set. An empty path returns DefaultWeights.
// Missing favorability entries are filled from the defaults.
func LoadWeights(path string) (WeightSet, error) {
	if path == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return WeightSet{}, fmt.Errorf("failed to read weight set: %w", err)
	}
	return ParseWeights(data)
}

// ParseWeights decodes and validates a YAML weight set
func ParseWeights(data []byte) (WeightSet, error) {
	var ws WeightSet
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return WeightSet{}, fmt.Errorf("failed to parse weight set: %v: %w", err, models.ErrConfiguration)
	}
	if ws.Name == "" {
		ws.Name = "custom"
	}
	if ws.Favorability == nil {
		ws.Favorability = make(map[models.Favorability]float64)
	}
	for k, v := range astro.DefaultFavorabilityWeights {
		if _, ok := ws.Favorability[k]; !ok {
			ws.Favorability[k] = v
		}
	}
	if err := ws.Validate(); err != nil {
		return WeightSet{}, err
	}
	return ws, nil
}
