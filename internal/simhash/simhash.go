package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

// Fingerprint computes the 64-bit simhash of text over word shingles
// of the given size. Tokenization lowercases and splits on anything
// that is not a letter or digit, so punctuation and markup remnants do
// not shift the fingerprint. An empty or unparseable text yields 0.
func Fingerprint(text string, shingleSize int) uint64 {
	if shingleSize < 1 {
		shingleSize = 1
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}
	// Short documents fall back to a single shingle of all tokens.
	if len(tokens) < shingleSize {
		shingleSize = len(tokens)
	}

	var votes [64]int
	for i := 0; i+shingleSize <= len(tokens); i++ {
		h := hashShingle(tokens[i : i+shingleSize])
		for bit := 0; bit < 64; bit++ {
			if h&(1<<uint(bit)) != 0 {
				votes[bit]++
			} else {
				votes[bit]--
			}
		}
	}

	var fp uint64
	for bit := 0; bit < 64; bit++ {
		if votes[bit] > 0 {
			fp |= 1 << uint(bit)
		}
	}
	return fp
}

// HammingDistance returns the number of differing bits between two
// fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// tokenize lowercases text and splits it into letter/digit runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hashShingle hashes a window of tokens with FNV-1a, separating tokens
// with a NUL byte so ("ab","c") and ("a","bc") hash differently.
func hashShingle(tokens []string) uint64 {
	h := fnv.New64a()
	for i, tok := range tokens {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(tok))
	}
	return h.Sum64()
}
