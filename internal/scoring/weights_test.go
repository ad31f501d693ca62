package scoring

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/selivandex/forecastr/pkg/models"
)

func TestDefaultWeights_SumToOne(t *testing.T) {
	ws := DefaultWeights()
	if math.Abs(ws.Weights.Sum()-1) > 1e-9 {
		t.Fatalf("default weights sum to %v, want 1", ws.Weights.Sum())
	}
	if err := ws.Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
	for _, f := range []models.Favorability{models.FavorableEntry, models.FavorableExit, models.FavorableNeutral, models.Caution} {
		if _, ok := ws.Favorability[f]; !ok {
			t.Errorf("favorability %s missing", f)
		}
	}
}

func TestWeightSet_Validate(t *testing.T) {
	t.Run("sum off by more than tolerance", func(t *testing.T) {
		ws := DefaultWeights()
		ws.Weights.Volume += 0.01
		if err := ws.Validate(); !errors.Is(err, models.ErrConfiguration) {
			t.Errorf("error = %v, want ErrConfiguration", err)
		}
	})

	t.Run("negative weight", func(t *testing.T) {
		ws := DefaultWeights()
		ws.Weights.Volume = -0.05
		ws.Weights.Confluence = 0.35
		if err := ws.Validate(); !errors.Is(err, models.ErrConfiguration) {
			t.Errorf("error = %v, want ErrConfiguration", err)
		}
	})

	t.Run("favorability outside unit range", func(t *testing.T) {
		ws := DefaultWeights()
		ws.Favorability[models.Caution] = 1.5
		if err := ws.Validate(); !errors.Is(err, models.ErrConfiguration) {
			t.Errorf("error = %v, want ErrConfiguration", err)
		}
	})
}

func TestParseWeights(t *testing.T) {
	data := []byte(`
name: momentum-heavy
weights:
  confluence: 0.20
  proximity: 0.20
  momentum: 0.25
  seasonal: 0.10
  aspect_alignment: 0.05
  volatility: 0.10
  trend: 0.05
  volume: 0.05
favorability:
  caution: 0.1
`)
	ws, err := ParseWeights(data)
	if err != nil {
		t.Fatalf("ParseWeights: %v", err)
	}
	if ws.Name != "momentum-heavy" {
		t.Errorf("name = %s", ws.Name)
	}
	if ws.Weights.Momentum != 0.25 {
		t.Errorf("momentum weight = %v", ws.Weights.Momentum)
	}
	if ws.Favorability[models.Caution] != 0.1 {
		t.Errorf("caution = %v, want override 0.1", ws.Favorability[models.Caution])
	}
	if ws.Favorability[models.FavorableEntry] != 1.0 {
		t.Errorf("missing favorability not filled from defaults")
	}

	if _, err := ParseWeights([]byte("weights: [")); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("malformed yaml error = %v, want ErrConfiguration", err)
	}
	if _, err := ParseWeights([]byte("weights:\n  confluence: 0.5\n")); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("partial weights error = %v, want ErrConfiguration", err)
	}
}

func TestLoadWeights(t *testing.T) {
	ws, err := LoadWeights("")
	if err != nil || ws.Name != "default" {
		t.Fatalf("empty path = %s, %v", ws.Name, err)
	}

	ws, err = LoadWeights(filepath.Join("..", "..", "configs", "weights.yaml"))
	if err != nil {
		t.Fatalf("bundled weight set: %v", err)
	}
	if ws.Name != "seasonal-tilt" {
		t.Errorf("name = %s, want seasonal-tilt", ws.Name)
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("weights:\n  volume: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(path); err == nil {
		t.Error("expected invalid weight set error")
	}
}
