package model

// Cursor is the durable ingestion position of a domain. LastCommittedIndex
// is the number of documents fully committed, which is also the index the
// next run resumes at. It only ever moves after a snapshot write succeeded,
// so a crash replays work instead of losing it.
type Cursor struct {
	Domain             string `json:"domain"`
	LastCommittedIndex int    `json:"last_committed_index"`
	BatchSize          int    `json:"batch_size,omitempty"`
	TotalDocuments     int    `json:"total_documents,omitempty"`
}
