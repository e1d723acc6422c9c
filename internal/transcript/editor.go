// Package transcript manages the per-language transcripts of a content
// record: the editable entry list, the lookup of existing transcript assets
// and the commit that uploads files and links them to the content.
package transcript

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

// API is the part of the sourcing service the editor talks to
type API interface {
	ReadContent(ctx context.Context, contentID string) (*models.Content, error)
	CompositeSearch(ctx context.Context, req *models.SearchRequest) (*models.SearchResult, error)
	CreateAsset(ctx context.Context, req *models.AssetRequest) (*models.AssetResult, error)
	UpdateAsset(ctx context.Context, assetID string, req *models.AssetRequest) (*models.AssetResult, error)
	GeneratePreSignedURL(ctx context.Context, assetID string, req *models.PreSignedURLRequest) (*models.PreSignedURLResult, error)
	UploadBlob(ctx context.Context, url string, body io.Reader, size int64, contentType string) error
	UploadAsset(ctx context.Context, assetID, fileURL, mimeType string) (*models.AssetResult, error)
	UpdateContent(ctx context.Context, contentID string, req *models.ContentUpdateRequest) (*models.ContentUpdateResult, error)
}

// Entry is one language/file row of the editor
type Entry struct {
	Identifier  string
	Language    string
	File        *File
	FileName    string
	VersionKey  string
	ArtifactURL string
}

// HasFile reports whether a new file is attached
func (e Entry) HasFile() bool {
	return e.File != nil
}

// Committable reports whether the entry takes part in a commit
func (e Entry) Committable() bool {
	return e.FileName != "" && e.Language != ""
}

// Editor holds the transcript entries of one content record
type Editor struct {
	api       API
	validator FileValidator
	notifier  Notifier
	logger    *logging.Logger

	mu          sync.Mutex
	content     models.Content
	entries     []*Entry
	catalog     map[string]models.Asset
	loading     bool
	doneEnabled bool
	closed      bool

	closeOnce sync.Once
	closedCh  chan struct{}
}

// Option configures an Editor
type Option func(*Editor)

// WithValidator sets the file validator used by AttachFile
func WithValidator(v FileValidator) Option {
	return func(e *Editor) {
		e.validator = v
	}
}

// WithNotifier sets where user-facing warnings go
func WithNotifier(n Notifier) Option {
	return func(e *Editor) {
		e.notifier = n
	}
}

// WithLogger sets the editor logger
func WithLogger(l *logging.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// NewEditor creates an editor for content. The editor starts loading with commit disabled.
func NewEditor(api API, content models.Content, opts ...Option) *Editor {
	e := &Editor{
		api:       api,
		validator: AcceptAll,
		logger:    logging.NewNopLogger(),
		content:   content,
		catalog:   make(map[string]models.Asset),
		loading:   true,
		closedCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = NewLogNotifier(e.logger)
	}
	e.logger = e.logger.WithContentID(content.Identifier)
	return e
}

// Open reads the current content record, builds the entries from its
// transcripts and looks up the existing transcript assets. A read failure is
// returned wrapped in ErrContentRead, but the editor is still initialized
// from the content it was created with.
func (e *Editor) Open(ctx context.Context) error {
	e.mu.Lock()
	e.loading = true
	contentID := e.content.Identifier
	e.mu.Unlock()

	var readErr error
	content, err := e.api.ReadContent(ctx, contentID)
	if err != nil {
		e.logger.ErrorWithErr("Unable to read the content", err)
		e.notifier.Error("Unable to read the Content, Please Try Again")
		readErr = fmt.Errorf("%w %s: %w", ErrContentRead, contentID, err)
	} else {
		e.mu.Lock()
		e.content.VersionKey = content.VersionKey
		e.content.Transcripts = content.Transcripts
		if content.Name != "" {
			e.content.Name = content.Name
		}
		e.mu.Unlock()
	}

	transcripts := e.Content().Transcripts
	e.Initialize(transcripts)

	if err := e.FetchCatalog(ctx, transcripts); err != nil {
		e.logger.WarnWithErr("Continuing without asset version keys", err)
	}

	return readErr
}

// Initialize replaces the entries with one per existing transcript plus a blank one
func (e *Editor) Initialize(existing models.Transcripts) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loading = true
	e.entries = e.entries[:0]
	for i := range existing {
		e.entries = append(e.entries, newEntry(&existing[i]))
	}
	e.entries = append(e.entries, newEntry(nil))
	e.loading = false
}

// AddEntry appends an entry, prefilled from data when given, and returns its index
func (e *Editor) AddEntry(data *models.TranscriptMetadata) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.entries = append(e.entries, newEntry(data))
	return len(e.entries) - 1
}

func newEntry(data *models.TranscriptMetadata) *Entry {
	if data == nil {
		return &Entry{}
	}
	return &Entry{
		Identifier:  data.Identifier,
		Language:    data.Language,
		FileName:    fileNameFromURL(data.ArtifactURL),
		ArtifactURL: data.ArtifactURL,
	}
}

func fileNameFromURL(artifactURL string) string {
	if artifactURL == "" {
		return ""
	}
	return path.Base(strings.TrimRight(artifactURL, "/"))
}

// AttachFile validates f and attaches it to the entry. An invalid file leaves the entry unchanged.
func (e *Editor) AttachFile(index int, f *File) error {
	if err := e.validator.Validate(f); err != nil {
		e.logger.WarnWithErr("Rejected transcript file", err)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.entryAt(index)
	if err != nil {
		return err
	}
	entry.File = f
	entry.FileName = f.Name
	return nil
}

// SelectLanguage sets the language of an entry. If another entry already uses
// the language, the selection on this entry is cleared instead and
// ErrDuplicateLanguage is returned.
func (e *Editor) SelectLanguage(index int, language string) error {
	if language != "" && !models.IsSupportedLanguage(language) {
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	e.mu.Lock()
	entry, err := e.entryAt(index)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	entry.Language = language
	duplicate := false
	if language != "" {
		for i, other := range e.entries {
			if i != index && other.Language == language {
				duplicate = true
				break
			}
		}
	}
	if duplicate {
		entry.Language = ""
	}
	e.mu.Unlock()

	if duplicate {
		e.notifier.Warn(language + " is already selected")
		return fmt.Errorf("%w: %s", ErrDuplicateLanguage, language)
	}
	return nil
}

// ResetFile clears the attached file and display filename of an entry
func (e *Editor) ResetFile(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, err := e.entryAt(index)
	if err != nil {
		return err
	}
	entry.File = nil
	entry.FileName = ""
	return nil
}

func (e *Editor) entryAt(index int) (*Entry, error) {
	if index < 0 || index >= len(e.entries) {
		return nil, fmt.Errorf("%w: %d", ErrEntryIndex, index)
	}
	return e.entries[index], nil
}

// Entries returns a copy of the current entries
func (e *Editor) Entries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Entry, len(e.entries))
	for i, entry := range e.entries {
		out[i] = *entry
	}
	return out
}

// Content returns the content record the editor works on
func (e *Editor) Content() models.Content {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content
}

// Loading reports whether existing transcript data is still loading
func (e *Editor) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// DoneEnabled reports whether Commit may be called
func (e *Editor) DoneEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doneEnabled && !e.closed
}

// Languages returns the languages a transcript can be written in
func (e *Editor) Languages() []string {
	out := make([]string, len(models.Languages))
	copy(out, models.Languages)
	return out
}

// DownloadURL returns the artifact URL of an existing transcript
func (e *Editor) DownloadURL(identifier string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tr, ok := e.content.Transcripts.Find(identifier)
	if !ok || tr.ArtifactURL == "" {
		e.notifier.Error("Something went wrong")
		return "", fmt.Errorf("%w: %s", ErrTranscriptNotFound, identifier)
	}
	return tr.ArtifactURL, nil
}

// Close discards the entries without committing and fires the closed signal
func (e *Editor) Close() {
	e.mu.Lock()
	e.entries = nil
	e.mu.Unlock()
	e.markClosed()
}

// Closed is closed once the editor has been closed, with or without a commit
func (e *Editor) Closed() <-chan struct{} {
	return e.closedCh
}

func (e *Editor) markClosed() {
	e.mu.Lock()
	e.closed = true
	e.doneEnabled = false
	e.mu.Unlock()
	e.closeOnce.Do(func() {
		close(e.closedCh)
	})
}
