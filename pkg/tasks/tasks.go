// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// ReindexTask represents a request to re-run the ingestion pipeline
// for an already stored document.
type ReindexTask struct {
	DocumentID  string `json:"document_id"`
	RequestedBy string `json:"requested_by"`
	Reason      string `json:"reason"`
}
