// Package textutil provides token-based text similarity primitives used by
// entity matching.
//
// Raw extracted references (utility names, topic labels, transcript snippets)
// are compared against registry entries via term-frequency fingerprints and
// cosine similarity. Tokenization lowercases text, splits on non-alphanumeric
// characters, and filters tokens shorter than 3 characters.
package textutil
