// Package retrieval implements hybrid article search: it fuses a lexical
// (BM25-style) query leg and a vector-similarity query leg into one ranked
// list under a tunable blend weight, and gates the result on a minimum
// fused score.
package retrieval
