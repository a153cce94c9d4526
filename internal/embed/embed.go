// Package embed computes deterministic, dependency-free text embeddings
// using a hashing bag-of-words trick: no trained model, no external
// service, reproducible byte-for-byte across processes.
package embed

import (
	"crypto/sha256"
	"math"
	"math/big"
	"strings"
)

// Dim is the fixed embedding width used across the system.
const Dim = 64

// Compute returns the unit-norm hashing embedding of text. Each
// whitespace-separated token is hashed with SHA-256 and folded into one
// of Dim buckets by big-int modulus; buckets count token occurrences and
// the resulting vector is L2-normalized. The zero vector (empty or
// entirely-whitespace text) is returned unnormalized.
func Compute(text string) []float64 {
	vector := make([]float64, Dim)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return vector
	}
	dim := big.NewInt(int64(Dim))
	for _, token := range tokens {
		sum := sha256.Sum256([]byte(token))
		h := new(big.Int).SetBytes(sum[:])
		idx := new(big.Int).Mod(h, dim).Int64()
		vector[idx]++
	}
	return Normalize(vector)
}

// Normalize L2-normalizes v in place and returns it. A zero vector is
// returned unchanged.
func Normalize(v []float64) []float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += x * x
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Dot is the plain dot product, used as cosine similarity once both
// operands are already unit-norm.
func Dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// L2Norm returns the Euclidean length of v.
func L2Norm(v []float64) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += x * x
	}
	return math.Sqrt(sumSquares)
}
