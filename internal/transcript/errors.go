package transcript

import (
	"errors"
	"fmt"
)

var (
	ErrEntryIndex          = errors.New("transcript entry index out of range")
	ErrUnsupportedLanguage = errors.New("unsupported transcript language")
	ErrDuplicateLanguage   = errors.New("language is already selected")
	ErrInvalidFile         = errors.New("invalid transcript file")
	ErrTranscriptNotFound  = errors.New("transcript not found")
	ErrContentRead         = errors.New("unable to read the content")
	ErrCatalogLookup       = errors.New("unable to look up transcript assets")
	ErrCommitDisabled      = errors.New("commit is disabled")
	ErrEditorClosed        = errors.New("transcript editor is closed")
	ErrContentUpdate       = errors.New("unable to update the content transcripts")
)

// Commit steps
const (
	StepCreateOrUpdateAsset = "create_or_update_asset"
	StepRequestPreSignedURL = "request_presigned_url"
	StepUploadBlob          = "upload_blob"
	StepFinalizeAsset       = "finalize_asset"
	StepUpdateContent       = "update_content"
)

// BranchError reports which entry and step failed during a commit
type BranchError struct {
	Index    int
	Language string
	Step     string
	Err      error
}

func (e *BranchError) Error() string {
	return fmt.Sprintf("transcript %d (%s) failed at %s: %v", e.Index, e.Language, e.Step, e.Err)
}

func (e *BranchError) Unwrap() error {
	return e.Err
}
