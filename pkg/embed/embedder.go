package embed

import (
	"hash/fnv"
	"math"
	"strings"
)

// Embedder maps text to a fixed-dimension dense vector. Implementations must
// be deterministic for a fixed model version.
type Embedder interface {
	Embed(text string) ([]float64, error)
	EmbedBatch(texts []string) ([][]float64, error)
	Dim() int
}

// HashEmbedder is a local, deterministic feature-hashing embedder. Character
// trigrams and word unigrams are hashed into signed buckets and the result is
// L2-normalized. It has no external model dependency and never errors.
type HashEmbedder struct {
	dim int
}

const defaultDim = 256

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultDim
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Dim() int { return e.dim }

func (e *HashEmbedder) Embed(text string) ([]float64, error) {
	vec := make([]float64, e.dim)
	norm := strings.ToLower(strings.TrimSpace(text))

	for _, tok := range strings.Fields(norm) {
		e.addFeature(vec, "w:"+tok, 1.0)
	}
	runes := []rune(norm)
	for i := 0; i+3 <= len(runes); i++ {
		e.addFeature(vec, "c:"+string(runes[i:i+3]), 0.5)
	}

	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum > 0 {
		inv := 1.0 / math.Sqrt(sum)
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (e *HashEmbedder) EmbedBatch(texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embed(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// addFeature hashes the feature into a bucket; one hash bit selects the sign
// so collisions cancel rather than accumulate.
func (e *HashEmbedder) addFeature(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
