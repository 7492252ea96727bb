// Package metrics holds the Prometheus collectors for HTTP, embedding, search and ingestion.
package metrics

// Namespace prefixes every metric name.
const Namespace = "neuralquery"
