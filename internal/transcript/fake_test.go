package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

type call struct {
	Method string
	ID     string
	Body   interface{}
}

// fakeAPI records every call and answers from canned data
type fakeAPI struct {
	mu    sync.Mutex
	calls []call

	content   *models.Content
	readErr   error
	assets    []models.Asset
	searchErr error

	createErr   error
	updateErr   map[string]error
	presignErr  error
	blobErr     error
	finalizeErr error
	contentErr  error

	// blocks the branch of an asset until released
	gates map[string]chan struct{}

	nextID int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updateErr: map[string]error{}, gates: map[string]chan struct{}{}}
}

func (f *fakeAPI) record(method, id string, body interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: method, ID: id, Body: body})
}

func (f *fakeAPI) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAPI) methods() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeAPI) callsTo(method string) []call {
	var out []call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAPI) ReadContent(ctx context.Context, contentID string) (*models.Content, error) {
	f.record("ReadContent", contentID, nil)
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.content == nil {
		return nil, errors.New("content not found")
	}
	c := *f.content
	return &c, nil
}

func (f *fakeAPI) CompositeSearch(ctx context.Context, req *models.SearchRequest) (*models.SearchResult, error) {
	f.record("CompositeSearch", "", req)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &models.SearchResult{Count: len(f.assets), Content: f.assets}, nil
}

func (f *fakeAPI) CreateAsset(ctx context.Context, req *models.AssetRequest) (*models.AssetResult, error) {
	f.record("CreateAsset", "", req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	f.nextID++
	id := fmt.Sprintf("do_new_%d", f.nextID)
	f.mu.Unlock()
	return &models.AssetResult{Identifier: id, VersionKey: "1"}, nil
}

func (f *fakeAPI) UpdateAsset(ctx context.Context, assetID string, req *models.AssetRequest) (*models.AssetResult, error) {
	f.record("UpdateAsset", assetID, req)
	if gate, ok := f.gate(assetID); ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.updateErr[assetID]; err != nil {
		return nil, err
	}
	return &models.AssetResult{Identifier: assetID, VersionKey: "2"}, nil
}

func (f *fakeAPI) gate(id string) (chan struct{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[id]
	return g, ok
}

func (f *fakeAPI) GeneratePreSignedURL(ctx context.Context, assetID string, req *models.PreSignedURLRequest) (*models.PreSignedURLResult, error) {
	f.record("GeneratePreSignedURL", assetID, req)
	if f.presignErr != nil {
		return nil, f.presignErr
	}
	return &models.PreSignedURLResult{
		Identifier:   assetID,
		PreSignedURL: "https://blob.example.org/assets/" + assetID + "/" + req.Content.FileName + "?sv=2024&sig=abc",
	}, nil
}

func (f *fakeAPI) UploadBlob(ctx context.Context, url string, body io.Reader, size int64, contentType string) error {
	data, _ := io.ReadAll(body)
	f.record("UploadBlob", url, string(data))
	return f.blobErr
}

func (f *fakeAPI) UploadAsset(ctx context.Context, assetID, fileURL, mimeType string) (*models.AssetResult, error) {
	f.record("UploadAsset", assetID, fileURL)
	if f.finalizeErr != nil {
		return nil, f.finalizeErr
	}
	return &models.AssetResult{Identifier: assetID, ArtifactURL: fileURL}, nil
}

func (f *fakeAPI) UpdateContent(ctx context.Context, contentID string, req *models.ContentUpdateRequest) (*models.ContentUpdateResult, error) {
	f.record("UpdateContent", contentID, req)
	if f.contentErr != nil {
		return nil, f.contentErr
	}
	return &models.ContentUpdateResult{Identifier: contentID, VersionKey: "v2"}, nil
}

// recordingNotifier keeps user-facing messages
type recordingNotifier struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (n *recordingNotifier) Warn(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}
