package sourcing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/config"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/metrics"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/tracing"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

// API paths relative to the client base URL
const (
	PathContentRead     = "/content/v3/read/"
	PathContentUpdate   = "/content/v3/update/"
	PathCompositeSearch = "/composite/v3/search"
	PathAssetCreate     = "/asset/v1/create"
	PathAssetUpdate     = "/asset/v1/update/"
	PathAssetUploadURL  = "/asset/v1/upload/url/"
	PathAssetUpload     = "/asset/v1/upload/"
)

// BlobTypeHeader is required by Azure-compatible blob stores on direct PUT uploads
const (
	BlobTypeHeader = "x-ms-blob-type"
	BlobTypeBlock  = "BlockBlob"
)

// Client talks to the content and asset REST service
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
	channelID  string
	logger     *logging.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAuthToken sets the bearer token sent on API calls
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// NewClient creates a new sourcing API client
func NewClient(cfg config.ClientConfig, logger *logging.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		authToken:  cfg.AuthToken,
		channelID:  cfg.ChannelID,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadContent fetches a content record with its transcripts
func (c *Client) ReadContent(ctx context.Context, contentID string) (*models.Content, error) {
	var result models.ReadContentResult
	if err := c.doJSON(ctx, "content.read", http.MethodGet, PathContentRead+contentID, nil, &result); err != nil {
		return nil, err
	}
	return &result.Content, nil
}

// UpdateContent patches the transcripts of a content record
func (c *Client) UpdateContent(ctx context.Context, contentID string, req *models.ContentUpdateRequest) (*models.ContentUpdateResult, error) {
	var result models.ContentUpdateResult
	if err := c.doJSON(ctx, "content.update", http.MethodPatch, PathContentUpdate+contentID, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CompositeSearch runs a filtered search over assets
func (c *Client) CompositeSearch(ctx context.Context, req *models.SearchRequest) (*models.SearchResult, error) {
	var result models.SearchResult
	if err := c.doJSON(ctx, "composite.search", http.MethodPost, PathCompositeSearch, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateAsset creates a transcript asset
func (c *Client) CreateAsset(ctx context.Context, req *models.AssetRequest) (*models.AssetResult, error) {
	var result models.AssetResult
	if err := c.doJSON(ctx, "asset.create", http.MethodPost, PathAssetCreate, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateAsset updates an existing transcript asset; req must carry its version key
func (c *Client) UpdateAsset(ctx context.Context, assetID string, req *models.AssetRequest) (*models.AssetResult, error) {
	var result models.AssetResult
	if err := c.doJSON(ctx, "asset.update", http.MethodPatch, PathAssetUpdate+assetID, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GeneratePreSignedURL requests a direct upload URL for a file of an asset
func (c *Client) GeneratePreSignedURL(ctx context.Context, assetID string, req *models.PreSignedURLRequest) (*models.PreSignedURLResult, error) {
	var result models.PreSignedURLResult
	if err := c.doJSON(ctx, "asset.presign", http.MethodPost, PathAssetUploadURL+assetID, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadAsset attaches the durable file URL to an asset
func (c *Client) UploadAsset(ctx context.Context, assetID, fileURL, mimeType string) (*models.AssetResult, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("fileUrl", fileURL); err != nil {
		return nil, fmt.Errorf("failed to write fileUrl field: %w", err)
	}
	if err := form.WriteField("mimeType", mimeType); err != nil {
		return nil, fmt.Errorf("failed to write mimeType field: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	var result models.AssetResult
	err := c.send(ctx, "asset.upload", http.MethodPost, c.baseURL+PathAssetUpload+assetID, &buf, form.FormDataContentType(), &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadBlob PUTs raw file bytes to a pre-signed blob URL
func (c *Client) UploadBlob(ctx context.Context, url string, body io.Reader, size int64, contentType string) error {
	span, ctx := tracing.StartClientSpan(ctx, "blob.upload", http.MethodPut, StripQuery(url))
	defer tracing.FinishSpan(span)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set(BlobTypeHeader, BlobTypeBlock)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	statusCode := 0
	if err == nil {
		defer resp.Body.Close()
		statusCode = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			err = &APIError{
				Operation:  "blob.upload",
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(msg)),
			}
		} else if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
			// the blob is stored once the status is 2xx
			c.logger.WarnWithErr("Failed to drain blob upload response", drainErr)
		}
	} else {
		err = fmt.Errorf("failed to upload blob: %w", err)
	}

	duration := time.Since(start)
	c.logger.LogAPICall("blob.upload", http.MethodPut, StripQuery(url), statusCode, duration, err)
	metrics.RecordClientCall("blob.upload", metrics.Status(err), duration.Seconds())
	if err == nil {
		metrics.RecordBlobUpload(size)
	}
	tracing.LogError(span, err)
	return err
}

// doJSON wraps body in the request envelope and decodes the response result into result
func (c *Client) doJSON(ctx context.Context, operation, method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(models.Request{
			ID:      "api." + operation,
			Ver:     "1.0",
			Request: body,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	return c.send(ctx, operation, method, c.baseURL+path, reader, "application/json", result)
}

func (c *Client) send(ctx context.Context, operation, method, url string, body io.Reader, contentType string, result interface{}) error {
	span, ctx := tracing.StartClientSpan(ctx, operation, method, url)
	defer tracing.FinishSpan(span)

	start := time.Now()
	statusCode, err := c.roundTrip(ctx, operation, method, url, body, contentType, result)
	duration := time.Since(start)

	c.logger.LogAPICall(operation, method, url, statusCode, duration, err)
	metrics.RecordClientCall(operation, metrics.Status(err), duration.Seconds())
	tracing.LogError(span, err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, operation, method, url string, body io.Reader, contentType string, result interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s request: %w", operation, err)
	}

	req.Header.Set("Accept", "application/json")
	tracing.Inject(ctx, req.Header)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if c.channelID != "" {
		req.Header.Set("X-Channel-Id", c.channelID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	envelope := models.Response{Result: result}
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			Operation:    operation,
			StatusCode:   resp.StatusCode,
			ResponseCode: envelope.ResponseCode,
			Code:         envelope.Params.Err,
			Message:      envelope.Params.ErrMsg,
		}
		if decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, apiErr
	}

	if decodeErr != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", operation, decodeErr)
	}

	if envelope.ResponseCode != models.ResponseCodeOK {
		return resp.StatusCode, &APIError{
			Operation:    operation,
			StatusCode:   resp.StatusCode,
			ResponseCode: envelope.ResponseCode,
			Code:         envelope.Params.Err,
			Message:      envelope.Params.ErrMsg,
		}
	}

	return resp.StatusCode, nil
}

// StripQuery removes the query string from a URL, turning a pre-signed URL into the durable object URL
func StripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
