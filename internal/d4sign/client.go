// Package d4sign implements the document listing and download link calls of the D4Sign
// REST API.
package d4sign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/italolelis/d4sign_downloader/internal/document"
	"github.com/italolelis/d4sign_downloader/internal/logctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://secure.d4sign.com.br/api/v1"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

// Client talks to the D4Sign API with query-string credentials.
type Client struct {
	baseURL    string
	tokenAPI   string
	cryptKey   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func NewClient(baseURL, tokenAPI, cryptKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokenAPI: tokenAPI,
		cryptKey: cryptKey,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ document.Client = (*Client)(nil)

// flexInt accepts both JSON numbers and numeric strings; the API uses either.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0

		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", b, err)
	}

	*f = flexInt(n)

	return nil
}

// listEntry is one element of a listing page. The first element of a page is the
// pagination header; every other element is a document.
type listEntry struct {
	UUIDDoc    string `json:"uuidDoc"`
	NameDoc    string `json:"nameDoc"`
	StatusID   string `json:"statusId"`
	StatusName string `json:"statusName"`
	SafeName   string `json:"safeName"`

	TotalPages  flexInt `json:"total_pages"`
	CurrentPage flexInt `json:"current_page"`
}

func (e *listEntry) toDocument() *document.Document {
	return &document.Document{
		ID:          e.UUIDDoc,
		DisplayName: e.NameDoc,
		StatusID:    e.StatusID,
		StatusName:  e.StatusName,
		SafeName:    e.SafeName,
	}
}

// ListDocuments fetches every page of the account's document list.
func (c *Client) ListDocuments(ctx context.Context) ([]*document.Document, error) {
	logger := logctx.LoggerFromContext(ctx).With("method", "list_documents")

	var docs []*document.Document

	for page := 1; ; page++ {
		pageDocs, totalPages, err := c.listPage(ctx, page)
		if err != nil {
			return nil, &document.ListingError{Page: page, Err: err}
		}

		docs = append(docs, pageDocs...)

		logger.Debug("listed documents page", "page", page, "total_pages", totalPages, "documents", len(pageDocs))

		if page >= totalPages {
			break
		}
	}

	return docs, nil
}

func (c *Client) listPage(ctx context.Context, page int) ([]*document.Document, int, error) {
	q := c.credentials()
	q.Set("pg", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/documents?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "list_documents")
	if err != nil {
		return nil, 0, err
	}

	var entries []listEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, 0, &document.NetworkError{Operation: "list_documents", APIMessage: "invalid listing response", Err: err}
	}

	totalPages := 1
	docs := make([]*document.Document, 0, len(entries))

	for i := range entries {
		entry := &entries[i]

		if entry.UUIDDoc != "" {
			docs = append(docs, entry.toDocument())

			continue
		}

		if i == 0 && entry.TotalPages > 0 {
			totalPages = int(entry.TotalPages)
		}
	}

	return docs, totalPages, nil
}

type downloadResponse struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ResolveDownloadLink asks the API for a temporary PDF download link. A reply without
// url is not an error: the Link carries the vendor's reason instead.
func (c *Client) ResolveDownloadLink(ctx context.Context, documentID string) (*document.Link, error) {
	if documentID == "" {
		return nil, document.ErrEmptyDocumentID
	}

	var form bytes.Buffer

	mw := multipart.NewWriter(&form)
	if err := mw.WriteField("type", "pdf"); err != nil {
		return nil, fmt.Errorf("failed to write form: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/documents/%s/download?%s", c.baseURL, url.PathEscape(documentID), c.credentials().Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &form)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "resolve_download_link")
	if err != nil && len(body) == 0 {
		return nil, err
	}

	var resp downloadResponse
	if decodeErr := json.Unmarshal(body, &resp); decodeErr != nil {
		if err != nil {
			return nil, err
		}

		return nil, &document.NetworkError{Operation: "resolve_download_link", APIMessage: "invalid download response", Err: decodeErr}
	}

	reason := resp.Error
	if reason == "" {
		reason = resp.Message
	}

	// Quota exhaustion and missing renditions may come with a non-2xx status and a JSON
	// reason. Those are classified by the caller, not treated as transport failures.
	if err != nil && resp.URL == "" && reason == "" {
		return nil, err
	}

	return &document.Link{URL: resp.URL, Name: resp.Name, ErrorReason: reason}, nil
}

func (c *Client) credentials() url.Values {
	q := url.Values{}
	q.Set("tokenAPI", c.tokenAPI)
	q.Set("cryptKey", c.cryptKey)

	return q
}

// do executes req and returns the body. On a non-2xx status it still returns the body along
// with a *document.NetworkError so callers can inspect the API's reply.
func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &document.NetworkError{Operation: operation, APIMessage: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &document.NetworkError{Operation: operation, StatusCode: resp.StatusCode, APIMessage: "failed to read body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := body
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}

		return body, &document.NetworkError{Operation: operation, StatusCode: resp.StatusCode, APIMessage: strings.TrimSpace(string(msg))}
	}

	return body, nil
}
