package models

// Run is the durable record of one completed search-branch interaction.
// Written once, never updated; retention is the store's concern.
type Run struct {
	RunID       string
	Timestamp   string
	InputText   string
	ModelOutput string
}

// FeedbackRecord is the ephemeral rating record, expired by the store
// after its TTL.
type FeedbackRecord struct {
	FeedbackID string
	RunID      string
	Rating     float64
	Timestamp  string
}

// Turn is one user/assistant exchange within a conversation, kept in
// chronological order per conversation id.
type Turn struct {
	ConversationID string
	UserInput      string
	ModelOutput    string
	CreatedAt      int64
}
