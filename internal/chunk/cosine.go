package chunk

import "math"

// CosineSimilarity returns the cosine of the angle between a and b,
// the similarity metric used across the RAG core (1 - cosine distance).
// Vectors of different lengths or zero magnitude yield 0; comparing
// across embedder generations is a caller bug that the store-level
// dimension filter prevents from ever reaching this function.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
