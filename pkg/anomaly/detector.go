package anomaly

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"sentinelgate/pkg/embed"
)

// Training constants. Contamination is deliberately very low: the baseline
// includes sensitive-but-legitimate prompts (security research, fiction), and
// only structurally extreme inputs should score as outliers; nuanced cases are
// left to the adjudication override layer.
const (
	Contamination = 0.005
	numTrees      = 200
	sampleSize    = 256
	trainSeed     = 42
)

// ErrNotTrained is returned by Score before a model has been trained or loaded.
var ErrNotTrained = errors.New("anomaly model is not trained or loaded")

// ErrDimMismatch is returned when the installed state was trained at a
// different embedding dimension than the active embedder produces. Scoring
// such a state would index past the embedding, so it is rejected up front.
var ErrDimMismatch = errors.New("model state embedding dimension does not match embedder")

// ModelState is the fitted state of the outlier detector: forest, projector and
// baseline projections are jointly present or jointly absent. It is replaced
// wholesale on retrain, never mutated in place.
type ModelState struct {
	Version   int              `json:"version"`
	TrainedAt time.Time        `json:"trained_at"`
	EmbedDim  int              `json:"embed_dim"`
	Threshold float64          `json:"threshold"`
	Forest    *IsolationForest `json:"forest"`
	Projector *PCA             `json:"projector"`
	// BaselinePoints are the projected baseline embeddings, kept for the
	// visualization layer.
	BaselinePoints [][2]float64 `json:"baseline_points"`
}

// Valid reports whether all fitted fields are present. A partially populated
// state is treated the same as no state at all.
func (s *ModelState) Valid() bool {
	return s != nil && s.Forest != nil && len(s.Forest.Trees) > 0 &&
		s.Projector != nil && len(s.Projector.Components) == 2 &&
		len(s.BaselinePoints) > 0
}

// Result is the outcome of scoring one text.
type Result struct {
	IsOutlier bool `json:"is_outlier"`
	// AnomalyScore follows the decision-function convention: more negative
	// means more anomalous; outliers score below zero.
	AnomalyScore float64    `json:"anomaly_score"`
	Coords       [2]float64 `json:"coords"`
}

// Detector scores prompts against a fitted ModelState. Scoring takes a
// consistent snapshot of the state; Train and SetState swap it exclusively.
type Detector struct {
	embedder embed.Embedder

	mu    sync.RWMutex
	state *ModelState
}

func NewDetector(embedder embed.Embedder) *Detector {
	return &Detector{embedder: embedder}
}

// Train embeds the baseline corpus, fits the forest and projector, and swaps
// the new state in. Training is idempotent for a fixed corpus.
func (d *Detector) Train(baselineTexts []string) (*ModelState, error) {
	if len(baselineTexts) == 0 {
		return nil, fmt.Errorf("empty baseline corpus")
	}
	embeddings, err := d.embedder.EmbedBatch(baselineTexts)
	if err != nil {
		return nil, fmt.Errorf("embed baseline corpus: %w", err)
	}

	rng := rand.New(rand.NewSource(trainSeed))
	forest := NewIsolationForest(numTrees, sampleSize)
	if err := forest.Fit(embeddings, rng); err != nil {
		return nil, fmt.Errorf("fit isolation forest: %w", err)
	}

	projector, err := FitPCA(embeddings)
	if err != nil {
		return nil, fmt.Errorf("fit projector: %w", err)
	}

	points := make([][2]float64, len(embeddings))
	for i, e := range embeddings {
		points[i] = projector.Project(e)
	}

	state := &ModelState{
		Version:        1,
		TrainedAt:      time.Now().UTC(),
		EmbedDim:       d.embedder.Dim(),
		Threshold:      fitThreshold(forest, embeddings),
		Forest:         forest,
		Projector:      projector,
		BaselinePoints: points,
	}

	d.mu.Lock()
	if d.state != nil {
		state.Version = d.state.Version + 1
	}
	d.state = state
	d.mu.Unlock()
	return state, nil
}

// fitThreshold places the decision boundary so at most contamination*N baseline
// points score as outliers.
func fitThreshold(forest *IsolationForest, embeddings [][]float64) float64 {
	scores := make([]float64, len(embeddings))
	for i, e := range embeddings {
		scores[i] = forest.Score(e)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
	k := int(Contamination * float64(len(scores)))
	if k >= len(scores) {
		k = len(scores) - 1
	}
	return scores[k]
}

// SetState installs a previously persisted state.
func (d *Detector) SetState(state *ModelState) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
}

// State returns the current state snapshot, which may be nil.
func (d *Detector) State() *ModelState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Score embeds the text, classifies it against the fitted decision boundary and
// projects it to 2D coordinates. Pure and deterministic for a fixed state.
func (d *Detector) Score(text string) (Result, error) {
	d.mu.RLock()
	state := d.state
	d.mu.RUnlock()
	if !state.Valid() {
		return Result{}, ErrNotTrained
	}
	if state.EmbedDim != d.embedder.Dim() {
		return Result{}, fmt.Errorf("%w: state dim %d, embedder dim %d",
			ErrDimMismatch, state.EmbedDim, d.embedder.Dim())
	}

	embedding, err := d.embedder.Embed(text)
	if err != nil {
		return Result{}, fmt.Errorf("embed prompt: %w", err)
	}
	return ScoreEmbedding(state, embedding), nil
}

// ScoreEmbedding scores a precomputed embedding against a state. Exposed so the
// persistence round-trip can be verified on fixed probe vectors.
func ScoreEmbedding(state *ModelState, embedding []float64) Result {
	raw := state.Forest.Score(embedding)
	decision := state.Threshold - raw
	return Result{
		IsOutlier:    decision < 0,
		AnomalyScore: decision,
		Coords:       state.Projector.Project(embedding),
	}
}
