package transcript

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/metrics"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/sourcing"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/tracing"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

const (
	branchUpload       = "upload"
	branchLanguageOnly = "language_only"
)

// CommitResult describes a finished commit
type CommitResult struct {
	Transcripts models.Transcripts
	Content     *models.ContentUpdateResult
	Skipped     int
}

// Commit pushes every entry that has both a filename and a language to the
// backend and then writes the collected transcript list onto the content.
// Entries run concurrently; the first failing entry cancels the others and
// the content update is not issued. The editor is closed afterwards whatever
// the outcome.
func (e *Editor) Commit(ctx context.Context) (*CommitResult, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEditorClosed
	}
	if !e.doneEnabled {
		e.mu.Unlock()
		return nil, ErrCommitDisabled
	}
	e.doneEnabled = false

	content := e.content
	catalog := make(map[string]models.Asset, len(e.catalog))
	for id, asset := range e.catalog {
		catalog[id] = asset
	}
	var pending []Entry
	var indices []int
	skipped := 0
	for i, entry := range e.entries {
		if !entry.Committable() {
			skipped++
			continue
		}
		pending = append(pending, *entry)
		indices = append(indices, i)
	}
	e.mu.Unlock()

	defer e.markClosed()

	span, ctx := tracing.StartSpan(ctx, "transcript.commit")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "content.id", content.Identifier)
	tracing.SetTag(span, "entries", len(pending))

	start := time.Now()
	logger := e.logger
	logger.LogCommitEvent(content.Identifier, "commit", "started", map[string]interface{}{
		"entries": len(pending),
		"skipped": skipped,
	})

	collected := make([]models.TranscriptMetadata, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for n := range pending {
		n := n
		g.Go(func() error {
			md, err := e.commitEntry(gctx, indices[n], pending[n], catalog)
			if err != nil {
				return err
			}
			collected[n] = md
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		tracing.LogError(span, err)
		metrics.RecordTranscriptCommit("error", time.Since(start).Seconds())
		logger.WithError(err).LogCommitEvent(content.Identifier, "commit", "failed", nil)
		return nil, err
	}

	result := &CommitResult{Transcripts: models.Transcripts(collected), Skipped: skipped}
	if len(pending) == 0 {
		logger.LogCommitEvent(content.Identifier, "commit", "nothing_to_commit", nil)
		return result, nil
	}

	req := &models.ContentUpdateRequest{}
	req.Content.VersionKey = content.VersionKey
	req.Content.Transcripts = result.Transcripts

	updated, err := e.api.UpdateContent(ctx, content.Identifier, req)
	if err != nil {
		tracing.LogError(span, err)
		metrics.RecordTranscriptCommit("error", time.Since(start).Seconds())
		logger.WithError(err).LogCommitEvent(content.Identifier, StepUpdateContent, "failed", nil)
		return result, fmt.Errorf("%w %s: %w", ErrContentUpdate, content.Identifier, err)
	}
	result.Content = updated

	e.mu.Lock()
	e.content.Transcripts = result.Transcripts
	if updated != nil && updated.VersionKey != "" {
		e.content.VersionKey = updated.VersionKey
	}
	e.mu.Unlock()

	metrics.RecordTranscriptCommit("success", time.Since(start).Seconds())
	logger.LogCommitEvent(content.Identifier, "commit", "completed", map[string]interface{}{
		"transcripts": len(result.Transcripts),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (e *Editor) commitEntry(ctx context.Context, index int, entry Entry, catalog map[string]models.Asset) (models.TranscriptMetadata, error) {
	branch := branchLanguageOnly
	if entry.HasFile() {
		branch = branchUpload
	}

	span, ctx := tracing.StartSpan(ctx, "transcript.commit."+branch)
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "transcript.language", entry.Language)

	var (
		md  models.TranscriptMetadata
		err error
	)
	if entry.HasFile() {
		md, err = e.uploadEntry(ctx, index, entry, catalog)
	} else {
		md, err = e.updateLanguage(ctx, index, entry, catalog)
	}

	metrics.RecordTranscriptBranch(branch, metrics.Status(err))
	if err != nil {
		tracing.LogError(span, err)
	}
	return md, err
}

// createOrUpdateAsset updates the asset when the entry is already linked to
// one, sending the catalog version key when known, and creates it otherwise.
func (e *Editor) createOrUpdateAsset(ctx context.Context, index int, entry Entry, catalog map[string]models.Asset) (*models.AssetResult, error) {
	req := models.NewTranscriptAssetRequest(entry.FileName, entry.Language)

	var (
		result *models.AssetResult
		err    error
	)
	if entry.Identifier != "" {
		if asset, ok := catalog[entry.Identifier]; ok {
			req.Asset.VersionKey = asset.VersionKey
		} else {
			req.Asset.VersionKey = entry.VersionKey
		}
		result, err = e.api.UpdateAsset(ctx, entry.Identifier, req)
	} else {
		result, err = e.api.CreateAsset(ctx, req)
	}
	if err != nil {
		return nil, &BranchError{Index: index, Language: entry.Language, Step: StepCreateOrUpdateAsset, Err: err}
	}
	if result == nil {
		result = &models.AssetResult{}
	}
	if result.Identifier == "" {
		result.Identifier = entry.Identifier
	}
	return result, nil
}

func (e *Editor) uploadEntry(ctx context.Context, index int, entry Entry, catalog map[string]models.Asset) (models.TranscriptMetadata, error) {
	logger := e.logger.WithLanguage(entry.Language)

	asset, err := e.createOrUpdateAsset(ctx, index, entry, catalog)
	if err != nil {
		return models.TranscriptMetadata{}, err
	}
	logger = logger.WithAssetID(asset.Identifier)

	presigned, err := e.api.GeneratePreSignedURL(ctx, asset.Identifier, models.NewPreSignedURLRequest(entry.FileName))
	if err == nil && (presigned == nil || presigned.PreSignedURL == "") {
		err = fmt.Errorf("no pre-signed URL returned for asset %s", asset.Identifier)
	}
	if err != nil {
		return models.TranscriptMetadata{}, &BranchError{Index: index, Language: entry.Language, Step: StepRequestPreSignedURL, Err: err}
	}
	finalizeID := presigned.Identifier
	if finalizeID == "" {
		finalizeID = asset.Identifier
	}
	artifactURL := sourcing.StripQuery(presigned.PreSignedURL)

	if err := e.api.UploadBlob(ctx, presigned.PreSignedURL, bytes.NewReader(entry.File.Data), entry.File.Size(), models.MimeTypeSubRip); err != nil {
		logger.ErrorWithErr("Transcript upload to blob storage failed", err)
	}

	if _, err := e.api.UploadAsset(ctx, finalizeID, artifactURL, models.MimeTypeSubRip); err != nil {
		return models.TranscriptMetadata{}, &BranchError{Index: index, Language: entry.Language, Step: StepFinalizeAsset, Err: err}
	}

	logger.LogCommitEvent(e.contentID(), StepFinalizeAsset, "completed", map[string]interface{}{
		"artifact_url": artifactURL,
	})
	return models.TranscriptMetadata{
		Identifier:  asset.Identifier,
		Language:    entry.Language,
		ArtifactURL: artifactURL,
	}, nil
}

func (e *Editor) updateLanguage(ctx context.Context, index int, entry Entry, catalog map[string]models.Asset) (models.TranscriptMetadata, error) {
	asset, err := e.createOrUpdateAsset(ctx, index, entry, catalog)
	if err != nil {
		return models.TranscriptMetadata{}, err
	}

	md := models.TranscriptMetadata{
		Identifier:  entry.Identifier,
		Language:    entry.Language,
		ArtifactURL: entry.ArtifactURL,
	}
	if existing, ok := catalog[entry.Identifier]; ok {
		md.Identifier = existing.Identifier
		if existing.ArtifactURL != "" {
			md.ArtifactURL = existing.ArtifactURL
		}
	}
	if md.Identifier == "" {
		md.Identifier = asset.Identifier
	}

	e.logger.WithLanguage(entry.Language).LogCommitEvent(e.contentID(), StepCreateOrUpdateAsset, "completed", nil)
	return md, nil
}

func (e *Editor) contentID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content.Identifier
}
