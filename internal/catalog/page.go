package catalog

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest asks for one zero-based page of results.
type PageRequest struct {
	Number int
	Size   int
}

// Normalize clamps r to a usable request.
func (r PageRequest) Normalize() PageRequest {
	if r.Number < 0 {
		r.Number = 0
	}
	if r.Size <= 0 {
		r.Size = DefaultPageSize
	}
	if r.Size > MaxPageSize {
		r.Size = MaxPageSize
	}
	return r
}

// Offset is the index of the first element of the page. It saturates at
// math.MaxInt, so pages far past the end are simply empty.
func (r PageRequest) Offset() int {
	if r.Number <= 0 || r.Size <= 0 {
		return 0
	}
	if r.Number > math.MaxInt/r.Size {
		return math.MaxInt
	}
	return r.Number * r.Size
}

// Page is a bounded slice of results plus the metadata needed to walk the rest.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

// NewPage assembles a page. req must already be normalized.
func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Number:        req.Number,
		Size:          req.Size,
		First:         req.Number == 0,
		Last:          req.Number >= totalPages-1,
	}
}

// MapPage converts the content of p, keeping its metadata.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	content := make([]U, 0, len(p.Content))
	for _, v := range p.Content {
		content = append(content, fn(v))
	}
	return Page[U]{
		Content:       content,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		Number:        p.Number,
		Size:          p.Size,
		First:         p.First,
		Last:          p.Last,
	}
}
