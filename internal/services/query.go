package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/markdave123-py/newsdesk/internal/models"
)

// RefusalAnswer is what the model is told to say when the articles do not
// cover the question.
const RefusalAnswer = "I cannot find an answer in the provided articles."

const systemPrompt = `You are a professional news assistant.
Based only on the following news articles, provide a clear and concise answer to the user's question.
Use complete sentences. If the articles do not contain enough information, say "` + RefusalAnswer + `"`

// Normalize case-folds and trims a message. Equal outputs share a cache entry.
func Normalize(message string) string {
	return strings.ToLower(strings.TrimSpace(message))
}

// QueryHash is the cache key of a normalized message.
func QueryHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// DedupByTitle keeps the first match of every title, preserving order.
func DedupByTitle(matches []models.RetrievedMatch) []models.RetrievedMatch {
	seen := make(map[string]struct{}, len(matches))
	out := make([]models.RetrievedMatch, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.Article.Title]; ok {
			continue
		}
		seen[m.Article.Title] = struct{}{}
		out = append(out, m)
	}
	return out
}

// BuildPrompt grounds question on docs.
func BuildPrompt(question string, docs []models.RetrievedMatch) models.Prompt {
	var sb strings.Builder
	sb.WriteString("Articles:\n")
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Article %d:\nTitle: %s\nContent: %s\nSource: %s\n",
			i+1, d.Article.Title, d.Article.Content, d.Article.Source)
	}
	fmt.Fprintf(&sb, "\nQuestion:\n%s\n\nAnswer:", question)

	return models.Prompt{System: systemPrompt, User: sb.String()}
}

func citations(matches []models.RetrievedMatch) []models.Citation {
	out := make([]models.Citation, 0, len(matches))
	for _, m := range matches {
		out = append(out, models.Citation{Title: m.Article.Title, URL: m.Article.URL, Score: m.Score})
	}
	return out
}
