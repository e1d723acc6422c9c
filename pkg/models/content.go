package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Content represents a learning content record that owns transcripts
type Content struct {
	Identifier    string      `json:"identifier" db:"identifier"`
	Name          string      `json:"name,omitempty" db:"name"`
	Status        string      `json:"status,omitempty" db:"status"`
	VersionKey    string      `json:"versionKey" db:"version_key"`
	Transcripts   Transcripts `json:"transcripts" db:"transcripts"`
	CreatedOn     time.Time   `json:"createdOn" db:"created_on"`
	LastUpdatedOn time.Time   `json:"lastUpdatedOn" db:"last_updated_on"`
}

// TranscriptMetadata links a content record to one transcript asset
type TranscriptMetadata struct {
	Identifier  string `json:"identifier"`
	Language    string `json:"language"`
	ArtifactURL string `json:"artifactUrl"`
}

// Transcripts is the ordered transcript list stored on a content record
type Transcripts []TranscriptMetadata

// Value implements driver.Valuer for database storage
func (t Transcripts) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for database retrieval
func (t *Transcripts) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = Transcripts{}
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported transcripts type %T", value)
	}
}

// Identifiers returns the non-empty asset identifiers in list order
func (t Transcripts) Identifiers() []string {
	ids := make([]string, 0, len(t))
	for _, tr := range t {
		if tr.Identifier != "" {
			ids = append(ids, tr.Identifier)
		}
	}
	return ids
}

// Find returns the transcript linked to the given asset identifier
func (t Transcripts) Find(identifier string) (TranscriptMetadata, bool) {
	for _, tr := range t {
		if tr.Identifier == identifier {
			return tr, true
		}
	}
	return TranscriptMetadata{}, false
}

// ContentPatch is the mutable part of a content record
type ContentPatch struct {
	VersionKey  string      `json:"versionKey" binding:"required"`
	Transcripts Transcripts `json:"transcripts"`
}

// ContentUpdateRequest is the body of a content update call
type ContentUpdateRequest struct {
	Content ContentPatch `json:"content" binding:"required"`
}

// ReadContentResult is the result of a content read call
type ReadContentResult struct {
	Content Content `json:"content"`
}

// ContentUpdateResult is the result of a content update call
type ContentUpdateResult struct {
	Identifier string `json:"identifier"`
	VersionKey string `json:"versionKey"`
}

// ContentStatus constants
const (
	ContentStatusDraft = "Draft"
	ContentStatusLive  = "Live"
)
