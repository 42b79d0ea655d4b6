package embed

import (
	"math"
	"testing"
)

func TestHashEmbedderDeterminism(t *testing.T) {
	e := NewHashEmbedder(0)
	a, err := e.Embed("Hello, how are you?")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := e.Embed("Hello, how are you?")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(a) != e.Dim() {
		t.Fatalf("expected dim %d, got %d", e.Dim(), len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d: %f != %f", i, a[i], b[i])
		}
	}
}

func TestHashEmbedderNormalized(t *testing.T) {
	e := NewHashEmbedder(128)
	v, err := e.Embed("the quick brown fox jumps over the lazy dog")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-9 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(sum))
	}
}

func TestHashEmbedderDistinguishesTexts(t *testing.T) {
	e := NewHashEmbedder(0)
	a, _ := e.Embed("What is the capital of Spain?")
	b, _ := e.Embed("zxqv jjkw plmn ooze qqrt")
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct texts produced identical embeddings")
	}
}

func TestHashEmbedderEmptyText(t *testing.T) {
	e := NewHashEmbedder(0)
	v, err := e.Embed("")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector for empty text, got %f at %d", x, i)
		}
	}
}

func TestHashEmbedderBatch(t *testing.T) {
	e := NewHashEmbedder(0)
	texts := []string{"one", "two", "three"}
	vecs, err := e.EmbedBatch(texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	single, _ := e.Embed("two")
	for i := range single {
		if vecs[1][i] != single[i] {
			t.Fatal("batch embedding differs from single embedding")
		}
	}
}
