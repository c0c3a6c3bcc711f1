package core

// TextExtractor turns markup found in feed items into plain text.
type TextExtractor interface {
	ExtractText(markup string) (string, error)
}
