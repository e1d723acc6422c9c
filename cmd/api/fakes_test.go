package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/cache"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/database"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/middleware"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/storage"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

// memStore is an in-memory Store with the same version key rules as the database
type memStore struct {
	mu       sync.Mutex
	contents map[string]models.Content
	assets   map[string]models.Asset
	webhooks []*models.Webhook
	err      error
}

func newMemStore() *memStore {
	return &memStore{
		contents: map[string]models.Content{},
		assets:   map[string]models.Asset{},
	}
}

func (s *memStore) CreateContent(ctx context.Context, content *models.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if content.Identifier == "" {
		content.Identifier = database.NewIdentifier()
	}
	if content.Transcripts == nil {
		content.Transcripts = models.Transcripts{}
	}
	content.Status = models.ContentStatusDraft
	content.VersionKey = database.NextVersionKey("", time.Now())
	s.contents[content.Identifier] = *content
	return nil
}

func (s *memStore) GetContent(ctx context.Context, id string) (*models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	content, ok := s.contents[id]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", id, database.ErrNotFound)
	}
	return &content, nil
}

func (s *memStore) UpdateContentTranscripts(ctx context.Context, id, versionKey string, transcripts models.Transcripts) (*models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	content, ok := s.contents[id]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", id, database.ErrNotFound)
	}
	if content.VersionKey != versionKey {
		return nil, fmt.Errorf("content %s: %w", id, database.ErrStaleVersionKey)
	}
	content.Transcripts = transcripts
	content.VersionKey = database.NextVersionKey(versionKey, time.Now())
	s.contents[id] = content
	return &content, nil
}

func (s *memStore) CreateAsset(ctx context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if asset.Identifier == "" {
		asset.Identifier = database.NewIdentifier()
	}
	if asset.Status == "" {
		asset.Status = models.AssetStatusDraft
	}
	asset.VersionKey = database.NextVersionKey("", time.Now())
	s.assets[asset.Identifier] = *asset
	return nil
}

func (s *memStore) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	asset, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, database.ErrNotFound)
	}
	return &asset, nil
}

func (s *memStore) UpdateAsset(ctx context.Context, id string, fields models.AssetFields) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	asset, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, database.ErrNotFound)
	}
	if asset.VersionKey != fields.VersionKey {
		return nil, fmt.Errorf("asset %s: %w", id, database.ErrStaleVersionKey)
	}
	asset.Name = fields.Name
	asset.MimeType = fields.MimeType
	asset.PrimaryCategory = fields.PrimaryCategory
	asset.MediaType = fields.MediaType
	asset.Language = fields.Language
	asset.VersionKey = database.NextVersionKey(fields.VersionKey, time.Now())
	s.assets[id] = asset
	return &asset, nil
}

func (s *memStore) FinalizeAsset(ctx context.Context, id, artifactURL, mimeType string) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	asset, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, database.ErrNotFound)
	}
	asset.ArtifactURL = artifactURL
	if mimeType != "" {
		asset.MimeType = mimeType
	}
	asset.Status = models.AssetStatusLive
	asset.VersionKey = database.NextVersionKey(asset.VersionKey, time.Now())
	s.assets[id] = asset
	return &asset, nil
}

func (s *memStore) SearchAssets(ctx context.Context, filters models.SearchFilters, limit int) ([]models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	ids := map[string]bool{}
	for _, id := range filters.Identifier {
		ids[id] = true
	}
	statuses := map[string]bool{}
	for _, st := range filters.Status {
		statuses[st] = true
	}

	out := []models.Asset{}
	for _, a := range s.assets {
		if filters.PrimaryCategory != "" && a.PrimaryCategory != filters.PrimaryCategory {
			continue
		}
		if len(statuses) > 0 && !statuses[a.Status] {
			continue
		}
		if len(ids) > 0 && !ids[a.Identifier] {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CreateWebhook(ctx context.Context, webhook *models.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	webhook.ID = fmt.Sprintf("wh_%d", len(s.webhooks)+1)
	cp := *webhook
	s.webhooks = append(s.webhooks, &cp)
	return nil
}

func (s *memStore) GetOwnerWebhooks(ctx context.Context, ownerID string) ([]*models.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.Webhook
	for _, w := range s.webhooks {
		if w.OwnerID == ownerID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) putAsset(a models.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.Identifier] = a
}

func (s *memStore) putContent(c models.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[c.Identifier] = c
}

func (s *memStore) content(id string) models.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contents[id]
}

func (s *memStore) asset(id string) models.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets[id]
}

// fakeBlobs presigns URLs pointing at an httptest server that stores PUT bodies
type fakeBlobs struct {
	mu      sync.Mutex
	server  *httptest.Server
	base    string
	objects map[string][]byte
	deleted []string
}

func newFakeBlobs(t *testing.T) *fakeBlobs {
	b := &fakeBlobs{objects: map[string][]byte{}}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.objects[strings.TrimPrefix(r.URL.Path, "/transcripts/")] = data
		b.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(b.server.Close)
	b.base = b.server.URL + "/transcripts/"
	return b
}

func (b *fakeBlobs) PresignedPutURL(ctx context.Context, objectName string) (string, time.Time, error) {
	return b.base + objectName + "?X-Amz-Signature=sig", time.Now().Add(time.Hour), nil
}

func (b *fakeBlobs) PresignedGetURL(ctx context.Context, objectName string) (string, time.Time, error) {
	return b.base + objectName + "?X-Amz-Signature=get", time.Now().Add(time.Hour), nil
}

func (b *fakeBlobs) Delete(ctx context.Context, objectName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, objectName)
	b.deleted = append(b.deleted, objectName)
	return nil
}

func (b *fakeBlobs) ObjectName(objectURL string) (string, bool) {
	return strings.CutPrefix(objectURL, b.base)
}

func (b *fakeBlobs) Stat(ctx context.Context, objectName string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[objectName]
	if !ok {
		return 0, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, objectName)
	}
	return int64(len(data)), nil
}

func (b *fakeBlobs) object(name string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[name]
}

func (b *fakeBlobs) put(name string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = data
}

func (b *fakeBlobs) deletedObjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishTranscriptEvent(ctx context.Context, event *models.TranscriptEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type fakeNotifier struct {
	mu          sync.Mutex
	transcripts []*models.TranscriptEvent
	uploads     []*models.Asset
}

func (n *fakeNotifier) NotifyTranscriptsUpdated(ctx context.Context, event *models.TranscriptEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transcripts = append(n.transcripts, event)
	return nil
}

func (n *fakeNotifier) NotifyAssetUploaded(ctx context.Context, asset *models.Asset) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.uploads = append(n.uploads, asset)
	return nil
}

type testEnv struct {
	api       *API
	router    *gin.Engine
	store     *memStore
	blobs     *fakeBlobs
	cache     *cache.Cache
	redis     *miniredis.Miniredis
	publisher *mockPublisher
	notifier  *fakeNotifier
	token     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetJWTSecret("test-secret")

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	c, err := cache.NewCache(mr.Host(), port, "", 0, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	env := &testEnv{
		store:     newMemStore(),
		blobs:     newFakeBlobs(t),
		cache:     c,
		redis:     mr,
		publisher: &mockPublisher{},
		notifier:  &fakeNotifier{},
	}
	env.api = &API{
		store:     env.store,
		blobs:     env.blobs,
		cache:     c,
		publisher: env.publisher,
		notifier:  env.notifier,
		logger:    logging.NewNopLogger(),
		checks: map[string]func(context.Context) error{
			"cache": c.Ping,
		},
	}
	env.router = setupRouter(env.api, middleware.NewRateLimiter(1000, 1000))

	env.token, err = middleware.GenerateToken("user-1", "channel-1", time.Hour)
	require.NoError(t, err)
	return env
}

// do sends an authenticated request; body is wrapped in the request envelope
func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(models.Request{ID: "test", Ver: "1.0", Request: body})
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+env.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// decode reads the envelope of w into result and returns it
func decode(t *testing.T, w *httptest.ResponseRecorder, result interface{}) models.Response {
	t.Helper()
	resp := models.Response{Result: result}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
