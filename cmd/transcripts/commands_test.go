package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/config"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/middleware"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/transcript"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

// memAPI is an in-memory sourcing service
type memAPI struct {
	mu       sync.Mutex
	content  models.Content
	assets   map[string]models.Asset
	blobs    map[string][]byte
	updates  int
	next     int
	readErr  error
	staleFor map[string]bool
}

func newMemAPI(content models.Content, assets ...models.Asset) *memAPI {
	m := &memAPI{
		content:  content,
		assets:   map[string]models.Asset{},
		blobs:    map[string][]byte{},
		staleFor: map[string]bool{},
	}
	for _, a := range assets {
		m.assets[a.Identifier] = a
	}
	return m
}

func (m *memAPI) ReadContent(ctx context.Context, contentID string) (*models.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	c := m.content
	return &c, nil
}

func (m *memAPI) CompositeSearch(ctx context.Context, req *models.SearchRequest) (*models.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &models.SearchResult{}
	for _, id := range req.Filters.Identifier {
		if a, ok := m.assets[id]; ok {
			result.Content = append(result.Content, a)
		}
	}
	result.Count = len(result.Content)
	return result, nil
}

func (m *memAPI) CreateAsset(ctx context.Context, req *models.AssetRequest) (*models.AssetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("do_new_%d", m.next)
	m.assets[id] = models.Asset{Identifier: id, Name: req.Asset.Name, Language: req.Asset.Language, VersionKey: "1"}
	return &models.AssetResult{Identifier: id, VersionKey: "1"}, nil
}

func (m *memAPI) UpdateAsset(ctx context.Context, assetID string, req *models.AssetRequest) (*models.AssetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s not found", assetID)
	}
	if m.staleFor[assetID] {
		return nil, fmt.Errorf("asset %s: stale version key", assetID)
	}
	a.Language = req.Asset.Language
	a.VersionKey += "+"
	m.assets[assetID] = a
	return &models.AssetResult{Identifier: assetID, VersionKey: a.VersionKey}, nil
}

func (m *memAPI) GeneratePreSignedURL(ctx context.Context, assetID string, req *models.PreSignedURLRequest) (*models.PreSignedURLResult, error) {
	return &models.PreSignedURLResult{
		Identifier:   assetID,
		PreSignedURL: "https://blob.example.org/assets/" + assetID + "/" + req.Content.FileName + "?sig=1",
	}, nil
}

func (m *memAPI) UploadBlob(ctx context.Context, url string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[url] = data
	return nil
}

func (m *memAPI) UploadAsset(ctx context.Context, assetID, fileURL, mimeType string) (*models.AssetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.assets[assetID]
	a.ArtifactURL = fileURL
	m.assets[assetID] = a
	return &models.AssetResult{Identifier: assetID, ArtifactURL: fileURL}, nil
}

func (m *memAPI) UpdateContent(ctx context.Context, contentID string, req *models.ContentUpdateRequest) (*models.ContentUpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	m.content.Transcripts = req.Content.Transcripts
	m.content.VersionKey = req.Content.VersionKey + "-next"
	return &models.ContentUpdateResult{Identifier: contentID, VersionKey: m.content.VersionKey}, nil
}

func seededAPI() *memAPI {
	return newMemAPI(
		models.Content{
			Identifier: "do_video",
			VersionKey: "v1",
			Transcripts: models.Transcripts{
				{Identifier: "do_hi", Language: "Hindi", ArtifactURL: "https://cdn.example.org/assets/do_hi/hindi.srt"},
				{Identifier: "do_en", Language: "English", ArtifactURL: "https://cdn.example.org/assets/do_en/english.srt"},
			},
		},
		models.Asset{Identifier: "do_hi", VersionKey: "7", ArtifactURL: "https://cdn.example.org/assets/do_hi/hindi.srt"},
		models.Asset{Identifier: "do_en", VersionKey: "3", ArtifactURL: "https://cdn.example.org/assets/do_en/english.srt"},
	)
}

func runCLI(t *testing.T, api transcript.API, args ...string) (string, string, error) {
	t.Helper()

	ctx := newCommandContext()
	ctx.newAPI = func(*config.Config, *logging.Logger) transcript.API { return api }
	return execute(t, ctx, "auth:\n  jwtSecret: cli-secret\n  tokenDuration: 1h\n", args...)
}

func execute(t *testing.T, ctx *commandContext, configYAML string, args ...string) (string, string, error) {
	t.Helper()

	ctx.logger = logging.NewNopLogger()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))

	cmd := newRootCommandWithContext(ctx)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeSRT(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("1\n00:00:01,000 --> 00:00:02,000\nhello\n"), 0o644))
	return path
}

func TestShowCommand(t *testing.T) {
	out, _, err := runCLI(t, seededAPI(), "show", "do_video")
	require.NoError(t, err)

	assert.Contains(t, out, "Content do_video (version v1)")
	assert.Contains(t, out, "Hindi")
	assert.Contains(t, out, "hindi.srt")
	assert.Contains(t, out, "do_en")
	// catalog version wins over the entry
	assert.Contains(t, out, "7")
}

func TestShowCommandReadFailure(t *testing.T) {
	api := seededAPI()
	api.readErr = fmt.Errorf("connection refused")

	_, stderr, err := runCLI(t, api, "show", "do_video")
	require.Error(t, err)
	assert.ErrorIs(t, err, transcript.ErrContentRead)
	assert.Contains(t, stderr, "Unable to read the Content")
}

func TestDownloadCommand(t *testing.T) {
	out, _, err := runCLI(t, seededAPI(), "download", "do_video", "do_en")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/assets/do_en/english.srt\n", out)

	_, stderr, err := runCLI(t, seededAPI(), "download", "do_video", "do_missing")
	assert.ErrorIs(t, err, transcript.ErrTranscriptNotFound)
	assert.Contains(t, stderr, "Something went wrong")
}

func TestLanguagesCommand(t *testing.T) {
	out, _, err := runCLI(t, seededAPI(), "languages")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), len(models.Languages))
}

func TestCommitCommandUploadsAndKeeps(t *testing.T) {
	api := seededAPI()
	path := writeSRT(t, "tamil.srt")

	out, _, err := runCLI(t, api, "commit", "do_video", "--transcript", "Tamil="+path)
	require.NoError(t, err)
	assert.Contains(t, out, "Committed 3 transcripts to do_video (version v1-next)")

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.content.Transcripts, 3)
	assert.Equal(t, "Hindi", api.content.Transcripts[0].Language)
	assert.Equal(t, "English", api.content.Transcripts[1].Language)
	assert.Equal(t, "Tamil", api.content.Transcripts[2].Language)
	assert.Equal(t, "https://blob.example.org/assets/do_new_1/tamil.srt", api.content.Transcripts[2].ArtifactURL)
	assert.Len(t, api.blobs, 1)
}

func TestCommitCommandReplacesExistingFile(t *testing.T) {
	api := seededAPI()
	path := writeSRT(t, "hindi-v2.srt")

	_, _, err := runCLI(t, api, "commit", "do_video", "-t", "Hindi="+path)
	require.NoError(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, "https://blob.example.org/assets/do_hi/hindi-v2.srt", api.content.Transcripts[0].ArtifactURL)
	assert.Equal(t, "do_hi", api.content.Transcripts[0].Identifier)
}

func TestCommitCommandDropAndRelabel(t *testing.T) {
	api := seededAPI()

	_, _, err := runCLI(t, api, "commit", "do_video", "--drop", "English", "--relabel", "Hindi=Urdu")
	require.NoError(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.content.Transcripts, 1)
	assert.Equal(t, models.TranscriptMetadata{
		Identifier:  "do_hi",
		Language:    "Urdu",
		ArtifactURL: "https://cdn.example.org/assets/do_hi/hindi.srt",
	}, api.content.Transcripts[0])
	assert.Equal(t, []string{"Urdu"}, api.assets["do_hi"].Language)
}

func TestCommitCommandDryRun(t *testing.T) {
	api := seededAPI()
	path := writeSRT(t, "tamil.srt")

	out, _, err := runCLI(t, api, "commit", "do_video", "--transcript", "Tamil="+path, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run")
	assert.Contains(t, out, "upload")

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Zero(t, api.updates)
	assert.Empty(t, api.blobs)
}

func TestCommitCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "bad assignment", args: []string{"--transcript", "Tamil"}, want: "expected KEY=VALUE"},
		{name: "unknown drop", args: []string{"--drop", "Tamil"}, want: "no Tamil transcript to drop"},
		{name: "drop every transcript", args: []string{"--drop", "Hindi", "--drop", "English"}, want: "cannot drop every transcript"},
		{name: "duplicate relabel", args: []string{"--relabel", "Hindi=English"}, want: "already selected"},
		{name: "unsupported language", args: []string{"--relabel", "Hindi=Klingon"}, want: "unsupported"},
		{name: "missing file", args: []string{"--transcript", "Tamil=/does/not/exist.srt"}, want: "failed to read transcript file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := seededAPI()
			_, _, err := runCLI(t, api, append([]string{"commit", "do_video"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			api.mu.Lock()
			defer api.mu.Unlock()
			assert.Zero(t, api.updates)
		})
	}
}

func TestCommitCommandRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not subtitles"), 0o644))

	_, _, err := runCLI(t, seededAPI(), "commit", "do_video", "--transcript", "Tamil="+path)
	require.Error(t, err)
	assert.ErrorIs(t, err, transcript.ErrInvalidFile)
}

func TestCommitCommandBranchFailure(t *testing.T) {
	api := seededAPI()
	api.staleFor["do_en"] = true

	_, _, err := runCLI(t, api, "commit", "do_video")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit failed for entry 1 (English)")
	assert.Contains(t, err.Error(), transcript.StepCreateOrUpdateAsset)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Zero(t, api.updates)
}

func TestTokenCommand(t *testing.T) {
	out, _, err := runCLI(t, seededAPI(), "token", "--user", "editor-1", "--ttl", "10m")
	require.NoError(t, err)

	middleware.SetJWTSecret("cli-secret")
	claims, err := middleware.ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "editor-1", claims.UserID)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.ExpiresAt.Time, time.Minute)

	_, _, err = runCLI(t, seededAPI(), "token")
	assert.Error(t, err)
}

func TestTokenFlagReachesService(t *testing.T) {
	var (
		mu   sync.Mutex
		auth string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.NewResponse("api.content.read", models.ReadContentResult{
			Content: models.Content{Identifier: "do_video", VersionKey: "v9"},
		}))
	}))
	defer server.Close()

	configYAML := "client:\n  baseURL: " + server.URL + "/api\n  authToken: from-config\n"
	out, _, err := execute(t, newCommandContext(), configYAML, "--token", "from-flag", "show", "do_video")
	require.NoError(t, err)
	assert.Contains(t, out, "Content do_video (version v9)")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer from-flag", auth)
}

func TestEventPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &eventPrinter{w: &buf, verbose: true}

	err := p.handle(&models.TranscriptEvent{
		Event:       models.WebhookEventTranscriptsUpdated,
		ContentID:   "do_video",
		VersionKey:  "42",
		Transcripts: models.Transcripts{{Identifier: "do_hi", Language: "Hindi"}},
		Timestamp:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "2024-01-02T03:04:05Z content.transcripts.updated content=do_video version=42 transcripts=1")
	assert.Contains(t, buf.String(), "do_hi")
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments("transcript", []string{"Hindi = hi.srt", "Tamil=ta=1.srt"})
	require.NoError(t, err)
	assert.Equal(t, []assignment{{key: "Hindi", value: "hi.srt"}, {key: "Tamil", value: "ta=1.srt"}}, got)

	_, err = parseAssignments("relabel", []string{"=Urdu"})
	assert.Error(t, err)
}
