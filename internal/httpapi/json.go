package httpapi

import (
	"io"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

const maxBodyBytes = 1 << 20

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = codec.NewEncoder(w).Encode(v)
}

// DecodeJSON reads the JSON request body into dst.
// Any failure comes back as a *BodyError.
func DecodeJSON(r *http.Request, dst any) error {
	dec := codec.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &BodyError{Err: err}
	}
	return nil
}

// ParseID parses a positive int64 path parameter.
func ParseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ParamError{Name: name, Value: raw, Expected: "Long"}
	}
	return id, nil
}

// QueryInt parses an optional int query parameter, returning def when absent.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParamError{Name: name, Value: raw, Expected: "Integer"}
	}
	return n, nil
}
