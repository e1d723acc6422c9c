package models

import "time"

// Asset represents a transcript file for one language
type Asset struct {
	Identifier      string    `json:"identifier" db:"identifier"`
	Name            string    `json:"name" db:"name"`
	MimeType        string    `json:"mimeType" db:"mime_type"`
	PrimaryCategory string    `json:"primaryCategory" db:"primary_category"`
	MediaType       string    `json:"mediaType" db:"media_type"`
	Language        []string  `json:"language" db:"language"`
	VersionKey      string    `json:"versionKey,omitempty" db:"version_key"`
	ArtifactURL     string    `json:"artifactUrl,omitempty" db:"artifact_url"`
	Status          string    `json:"status,omitempty" db:"status"`
	CreatedOn       time.Time `json:"createdOn" db:"created_on"`
	LastUpdatedOn   time.Time `json:"lastUpdatedOn" db:"last_updated_on"`
}

// AssetFields holds the writable fields of an asset
type AssetFields struct {
	Name            string   `json:"name" binding:"required"`
	MimeType        string   `json:"mimeType" binding:"required"`
	PrimaryCategory string   `json:"primaryCategory" binding:"required"`
	MediaType       string   `json:"mediaType" binding:"required"`
	Language        []string `json:"language" binding:"required,min=1"`
	VersionKey      string   `json:"versionKey,omitempty"`
}

// AssetRequest is the body of an asset create or update call
type AssetRequest struct {
	Asset AssetFields `json:"asset" binding:"required"`
}

// NewTranscriptAssetRequest builds the request for a subtitle file in one language
func NewTranscriptAssetRequest(fileName, language string) *AssetRequest {
	return &AssetRequest{
		Asset: AssetFields{
			Name:            fileName,
			MimeType:        MimeTypeSubRip,
			PrimaryCategory: PrimaryCategoryVideoTranscript,
			MediaType:       MediaTypeText,
			Language:        []string{language},
		},
	}
}

// AssetResult is returned by asset create, update and upload calls
type AssetResult struct {
	Identifier  string `json:"identifier"`
	VersionKey  string `json:"versionKey,omitempty"`
	ArtifactURL string `json:"artifactUrl,omitempty"`
}

// PreSignedURLRequest asks for an upload URL for a file of an asset
type PreSignedURLRequest struct {
	Content struct {
		FileName string `json:"fileName" binding:"required"`
	} `json:"content" binding:"required"`
}

// NewPreSignedURLRequest builds a pre-signed URL request for fileName
func NewPreSignedURLRequest(fileName string) *PreSignedURLRequest {
	req := &PreSignedURLRequest{}
	req.Content.FileName = fileName
	return req
}

// PreSignedURLResult carries a time-limited direct upload URL
type PreSignedURLResult struct {
	Identifier   string `json:"identifier"`
	PreSignedURL string `json:"pre_signed_url"`
	URLExpiry    string `json:"url_expiry,omitempty"`
}

// DownloadURLResult carries a time-limited URL for fetching an uploaded transcript
type DownloadURLResult struct {
	Identifier  string `json:"identifier"`
	DownloadURL string `json:"download_url"`
	URLExpiry   string `json:"url_expiry,omitempty"`
}

// Asset constants
const (
	MimeTypeSubRip                 = "application/x-subrip"
	PrimaryCategoryVideoTranscript = "Video transcript"
	MediaTypeText                  = "text"
)

// AssetStatus constants
const (
	AssetStatusDraft = "Draft"
	AssetStatusLive  = "Live"
)
