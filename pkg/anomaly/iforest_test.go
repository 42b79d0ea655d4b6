package anomaly

import (
	"math/rand"
	"testing"
)

func clusterData(rng *rand.Rand, n, d int) [][]float64 {
	X := make([][]float64, n)
	for i := range X {
		row := make([]float64, d)
		for j := range row {
			row[j] = rng.NormFloat64() * 0.1
		}
		X[i] = row
	}
	return X
}

func TestIsolationForestFitEmpty(t *testing.T) {
	f := NewIsolationForest(10, 32)
	if err := f.Fit(nil, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected error fitting on empty data")
	}
}

func TestIsolationForestDeterministicUnderSeed(t *testing.T) {
	X := clusterData(rand.New(rand.NewSource(7)), 100, 8)
	probe := []float64{5, 5, 5, 5, 5, 5, 5, 5}

	f1 := NewIsolationForest(50, 64)
	if err := f1.Fit(X, rand.New(rand.NewSource(42))); err != nil {
		t.Fatalf("fit: %v", err)
	}
	f2 := NewIsolationForest(50, 64)
	if err := f2.Fit(X, rand.New(rand.NewSource(42))); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if f1.Score(probe) != f2.Score(probe) {
		t.Errorf("same seed produced different scores: %f vs %f", f1.Score(probe), f2.Score(probe))
	}
}

func TestIsolationForestSeparatesOutliers(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	X := clusterData(rng, 200, 4)

	f := NewIsolationForest(100, 128)
	if err := f.Fit(X, rand.New(rand.NewSource(42))); err != nil {
		t.Fatalf("fit: %v", err)
	}

	inlier := []float64{0.01, -0.02, 0.03, 0.0}
	outlier := []float64{10, 10, 10, 10}
	if f.Score(outlier) <= f.Score(inlier) {
		t.Errorf("expected outlier score > inlier score, got %f <= %f", f.Score(outlier), f.Score(inlier))
	}
}

func TestIsolationForestScoreRange(t *testing.T) {
	X := clusterData(rand.New(rand.NewSource(9)), 50, 3)
	f := NewIsolationForest(20, 32)
	if err := f.Fit(X, rand.New(rand.NewSource(42))); err != nil {
		t.Fatalf("fit: %v", err)
	}
	for _, x := range X {
		s := f.Score(x)
		if s < 0 || s > 1 {
			t.Fatalf("score out of [0,1]: %f", s)
		}
	}
}

func TestIsolationForestUntrainedScoresZero(t *testing.T) {
	f := NewIsolationForest(10, 32)
	if s := f.Score([]float64{1, 2, 3}); s != 0 {
		t.Errorf("untrained forest should score 0, got %f", s)
	}
}
