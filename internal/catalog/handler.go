// internal/catalog/handler.go
package catalog

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"libraryloans/internal/httpapi"
)

// BookInput is the request body of create and update.
type BookInput struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// BookOutput is the representation of a book in responses.
type BookOutput struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

func (in BookInput) validate() error {
	v := httpapi.NewValidator()
	v.Required(in.Title, "title", MsgTitleRequired)
	v.Required(in.Author, "author", MsgAuthorRequired)
	v.Required(in.ISBN, "isbn", MsgISBNRequired)
	return v.Err()
}

func (in BookInput) toBook() *Book {
	return &Book{
		Title:  strings.TrimSpace(in.Title),
		Author: strings.TrimSpace(in.Author),
		ISBN:   strings.TrimSpace(in.ISBN),
	}
}

// mergeInto copies the non-blank fields of in onto b.
func (in BookInput) mergeInto(b *Book) {
	if v := strings.TrimSpace(in.Title); v != "" {
		b.Title = v
	}
	if v := strings.TrimSpace(in.Author); v != "" {
		b.Author = v
	}
	if v := strings.TrimSpace(in.ISBN); v != "" {
		b.ISBN = v
	}
}

func ToOutput(b Book) BookOutput {
	return BookOutput{ID: b.ID, Title: b.Title, Author: b.Author, ISBN: b.ISBN}
}

type Handler struct {
	service Service
	errors  *httpapi.Errors
}

func NewHandler(service Service, errors *httpapi.Errors) *Handler {
	return &Handler{service: service, errors: errors}
}

// Routes mounts the book endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleFind)
	r.Route("/{bookID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Put("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
		r.Get("/history", h.handleHistory)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in BookInput
	if err := httpapi.DecodeJSON(r, &in); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	book, err := h.service.Save(r.Context(), in.toBook())
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, ToOutput(*book))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	book, err := h.service.FindByIDRequired(r.Context(), id)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, ToOutput(*book))
}

func (h *Handler) handleFind(w http.ResponseWriter, r *http.Request) {
	number, err := httpapi.QueryInt(r, "page", 0)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	size, err := httpapi.QueryInt(r, "size", DefaultPageSize)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	params := r.URL.Query()
	query := NewBookQuery().
		Contains(FieldTitle, strings.TrimSpace(params.Get("title"))).
		Contains(FieldAuthor, strings.TrimSpace(params.Get("author"))).
		Contains(FieldISBN, strings.TrimSpace(params.Get("isbn")))

	page, err := h.service.Find(r.Context(), query, PageRequest{Number: number, Size: size})
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, MapPage(page, ToOutput))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	var in BookInput
	if err := httpapi.DecodeJSON(r, &in); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	book, err := h.service.FindByIDRequired(r.Context(), id)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	in.mergeInto(book)

	updated, err := h.service.Update(r.Context(), book)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, ToOutput(*updated))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, entries)
}

func bookID(r *http.Request) (int64, error) {
	return httpapi.ParseID("bookId", chi.URLParam(r, "bookID"))
}
