package models

import (
	"time"
)

// Article is one ingested news item. It is the payload stored next to each
// vector in the index and is never mutated after ingestion.
type Article struct {
	ID          string `db:"id" json:"id,omitempty"`
	RunID       string `db:"run_id" json:"runId,omitempty"`
	Title       string `db:"title" json:"title"`
	Content     string `db:"content" json:"content"`
	URL         string `db:"url" json:"url"`
	PublishedAt string `db:"published_at" json:"publishedAt"`
	Source      string `db:"source" json:"source"`
}

// EmbeddingText is the text sent to the embedder for this article.
func (a Article) EmbeddingText(maxLen int) string {
	text := a.Title + " " + a.Content
	if maxLen > 0 && len(text) > maxLen {
		r := []rune(text)
		if len(r) > maxLen {
			r = r[:maxLen]
		}
		text = string(r)
	}
	return text
}

// RetrievedMatch is a single similarity hit for one query. Rank is 1-based.
type RetrievedMatch struct {
	Article Article `json:"article"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// Citation is the provenance returned with an answer.
type Citation struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// QueryResult is what the orchestrator returns for one question.
type QueryResult struct {
	Answer    string           `json:"answer"`
	Citations []Citation       `json:"citations"`
	Grounding []RetrievedMatch `json:"-"`
	Cached    bool             `json:"cached"`
}

// Prompt is a system instruction plus the user turn sent to the generator.
type Prompt struct {
	System string
	User   string
}

// MessageEntry is one question/answer exchange inside a session.
type MessageEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	UserMessage string    `json:"userMessage"`
	BotResponse string    `json:"botResponse"`
}

// Session is a conversation. Messages are append-only, ordered by arrival.
type Session struct {
	SessionID      string         `json:"sessionId"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastActivityAt time.Time      `json:"lastActivity"`
	Messages       []MessageEntry `json:"messages"`
}

// Clone returns a deep copy safe to hand to callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]MessageEntry, len(s.Messages))
	copy(out.Messages, s.Messages)
	return &out
}

// SessionSummary is the listing view of an active session.
type SessionSummary struct {
	SessionID      string    `json:"sessionId"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivity"`
	MessageCount   int       `json:"messageCount"`
}

// ChatReply is the transport-facing answer to a chat message.
type ChatReply struct {
	Message          string     `json:"message"`
	RelevantArticles []Citation `json:"relevantArticles"`
	Timestamp        string     `json:"timestamp"`
}
