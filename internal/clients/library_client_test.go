package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryloans/internal/catalog"
	"libraryloans/internal/httpapi"
)

func TestCreateBook_SendsJSONAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/books", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in catalog.BookInput
		require.NoError(t, httpapi.DecodeJSON(r, &in))
		httpapi.WriteJSON(w, http.StatusCreated, catalog.BookOutput{ID: 9, Title: in.Title, Author: in.Author, ISBN: in.ISBN})
	}))
	defer srv.Close()

	out, err := NewLibraryClient(srv.URL).CreateBook(context.Background(), catalog.BookInput{Title: "T", Author: "A", ISBN: "1"})
	require.NoError(t, err)
	assert.Equal(t, &catalog.BookOutput{ID: 9, Title: "T", Author: "A", ISBN: "1"}, out)
}

func TestFindBooks_EncodesFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "aven", q.Get("title"))
		assert.Equal(t, "", q.Get("author"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "5", q.Get("size"))
		httpapi.WriteJSON(w, http.StatusOK, catalog.NewPage([]catalog.BookOutput{}, catalog.PageRequest{Number: 2, Size: 5}, 0))
	}))
	defer srv.Close()

	page, err := NewLibraryClient(srv.URL).FindBooks(context.Background(), BookFilter{Title: "aven", Page: 2, Size: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Number)
	assert.Empty(t, page.Content)
}

func TestClientErrorsCarryTheBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusNotFound, httpapi.APIError{StatusCode: 404, Message: "Livro não encontrado"})
	}))
	defer srv.Close()

	_, err := NewLibraryClient(srv.URL).GetBook(context.Background(), 1)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Livro não encontrado", apiErr.Body.Message)
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		httpapi.WriteJSON(w, http.StatusBadRequest, httpapi.APIError{StatusCode: 400, Message: "ISBN já cadastrado"})
	}))
	defer srv.Close()

	client := NewLibraryClient(srv.URL)
	for i := 0; i < 10; i++ {
		_, err := client.CreateBook(context.Background(), catalog.BookInput{Title: "T", Author: "A", ISBN: "1"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.EqualValues(t, 10, calls.Load())
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		httpapi.WriteJSON(w, http.StatusInternalServerError, httpapi.APIError{StatusCode: 500, Message: httpapi.MsgInternal})
	}))
	defer srv.Close()

	client := NewLibraryClient(srv.URL, WithBreakerSettings(gobreaker.Settings{
		Name:    "test",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}))

	for i := 0; i < 3; i++ {
		_, err := client.GetBook(context.Background(), 1)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	}

	_, err := client.GetBook(context.Background(), 1)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDeleteBook_ExpectsNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/books/3", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewLibraryClient(srv.URL).DeleteBook(context.Background(), 3))
}
