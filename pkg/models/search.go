package models

// SearchFilters narrows a composite search
type SearchFilters struct {
	PrimaryCategory string   `json:"primaryCategory,omitempty"`
	Status          []string `json:"status"`
	Identifier      []string `json:"identifier,omitempty"`
}

// SearchRequest is the body of a composite search call
type SearchRequest struct {
	Filters SearchFilters `json:"filters"`
	Fields  []string      `json:"fields,omitempty"`
	Limit   int           `json:"limit,omitempty"`
}

// NewTranscriptSearchRequest looks up version keys of transcript assets by identifier
func NewTranscriptSearchRequest(identifiers []string) *SearchRequest {
	return &SearchRequest{
		Filters: SearchFilters{
			PrimaryCategory: PrimaryCategoryVideoTranscript,
			Status:          []string{},
			Identifier:      identifiers,
		},
		Fields: []string{"versionKey"},
	}
}

// SearchResult is the result of a composite search call
type SearchResult struct {
	Count   int     `json:"count"`
	Content []Asset `json:"content"`
}
