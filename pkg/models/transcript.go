package models

import "time"

// Languages is the fixed list a transcript language is picked from
var Languages = []string{
	"English",
	"Hindi",
	"Assamese",
	"Bengali",
	"Gujarati",
	"Kannada",
	"Malayalam",
	"Marathi",
	"Nepali",
	"Odia",
	"Punjabi",
	"Tamil",
	"Telugu",
	"Urdu",
	"Sanskrit",
	"Maithili",
	"Munda",
	"Santali",
	"Juang",
	"Ho",
}

// IsSupportedLanguage reports whether language is in Languages
func IsSupportedLanguage(language string) bool {
	for _, l := range Languages {
		if l == language {
			return true
		}
	}
	return false
}

// TranscriptEvent is published when the transcripts of a content change
type TranscriptEvent struct {
	Event       string      `json:"event"`
	ContentID   string      `json:"content_id"`
	AssetID     string      `json:"asset_id,omitempty"`
	VersionKey  string      `json:"version_key"`
	Transcripts Transcripts `json:"transcripts,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}
