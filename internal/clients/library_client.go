// internal/clients/library_client.go
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sony/gobreaker"

	"libraryloans/internal/catalog"
	"libraryloans/internal/circulation"
	"libraryloans/internal/httpapi"
	"libraryloans/internal/journal"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Body       httpapi.APIError
}

func (e *APIError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// BookFilter narrows a book search. Empty fields match anything.
type BookFilter struct {
	Title  string
	Author string
	ISBN   string
	Page   int
	Size   int
}

type Option func(*LibraryClient)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *LibraryClient) { c.http = hc }
}

// WithBreakerSettings replaces the default circuit breaker settings.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *LibraryClient) { c.breaker = gobreaker.NewCircuitBreaker(st) }
}

// LibraryClient calls the library REST API. Transport failures and 5xx
// answers count against a circuit breaker; client errors do not.
type LibraryClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewLibraryClient(baseURL string, opts ...Option) *LibraryClient {
	c := &LibraryClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "library-api",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LibraryClient) CreateBook(ctx context.Context, in catalog.BookInput) (*catalog.BookOutput, error) {
	var out catalog.BookOutput
	if err := c.do(ctx, http.MethodPost, "/api/books", in, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *LibraryClient) GetBook(ctx context.Context, id int64) (*catalog.BookOutput, error) {
	var out catalog.BookOutput
	if err := c.do(ctx, http.MethodGet, bookPath(id), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *LibraryClient) FindBooks(ctx context.Context, f BookFilter) (*catalog.Page[catalog.BookOutput], error) {
	q := url.Values{}
	if f.Title != "" {
		q.Set("title", f.Title)
	}
	if f.Author != "" {
		q.Set("author", f.Author)
	}
	if f.ISBN != "" {
		q.Set("isbn", f.ISBN)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Size > 0 {
		q.Set("size", strconv.Itoa(f.Size))
	}

	path := "/api/books"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out catalog.Page[catalog.BookOutput]
	if err := c.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *LibraryClient) UpdateBook(ctx context.Context, id int64, in catalog.BookInput) (*catalog.BookOutput, error) {
	var out catalog.BookOutput
	if err := c.do(ctx, http.MethodPut, bookPath(id), in, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *LibraryClient) DeleteBook(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, bookPath(id), nil, nil, http.StatusNoContent)
}

func (c *LibraryClient) BookHistory(ctx context.Context, id int64) ([]journal.Entry, error) {
	var out []journal.Entry
	if err := c.do(ctx, http.MethodGet, bookPath(id)+"/history", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LibraryClient) CreateLoan(ctx context.Context, in circulation.LoanInput) (*circulation.LoanOutput, error) {
	var out circulation.LoanOutput
	if err := c.do(ctx, http.MethodPost, "/api/loans", in, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func bookPath(id int64) string {
	return fmt.Sprintf("/api/books/%d", id)
}

type response struct {
	status int
	body   []byte
}

func (c *LibraryClient) do(ctx context.Context, method, path string, in, out any, want int) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = codec.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, newAPIError(resp.StatusCode, body)
		}
		return &response{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	resp := result.(*response)
	if resp.status != want {
		return fmt.Errorf("%s %s: %w", method, path, newAPIError(resp.status, resp.body))
	}
	if out == nil {
		return nil
	}
	if err := codec.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	_ = codec.Unmarshal(body, &apiErr.Body)
	return apiErr
}
