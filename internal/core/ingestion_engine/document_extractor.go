package ingestion_engine

import (
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/newsdesk/internal/core"
)

var _ core.TextExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor turns feed item markup into plain text using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ExtractText returns markup as collapsed plain text. Input without tags is
// only whitespace-normalized.
func (e *DocconvExtractor) ExtractText(markup string) (string, error) {
	if !strings.ContainsAny(markup, "<&") {
		return collapseSpace(markup), nil
	}

	text, _, err := docconv.ConvertHTML(strings.NewReader(markup), e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv: html extraction failed: %w", err)
	}
	return collapseSpace(text), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
