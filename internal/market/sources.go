package market

import "github.com/sawpanic/brlpulse/internal/provider"

const (
	DefaultCitationTitle = "Financial source"
	DefaultCitationURL   = "#"
)

// ExtractCitations maps grounding chunks to citations, in provider order.
// Chunks without web metadata are dropped; duplicates are kept.
func ExtractCitations(chunks []provider.GroundingChunk) []Citation {
	citations := make([]Citation, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Web == nil {
			continue
		}
		c := Citation{Title: chunk.Web.Title, URL: chunk.Web.URI}
		if c.Title == "" {
			c.Title = DefaultCitationTitle
		}
		if c.URL == "" {
			c.URL = DefaultCitationURL
		}
		citations = append(citations, c)
	}
	return citations
}
