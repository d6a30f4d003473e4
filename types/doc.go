// Package types defines the shared data model of finrag: articles, scored
// retrieval results, answer results, and the structured error type used
// across the retrieval and agent layers.
package types
