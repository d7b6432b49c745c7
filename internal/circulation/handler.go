// internal/circulation/handler.go
package circulation

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"libraryloans/internal/catalog"
	"libraryloans/internal/httpapi"
)

// DateLayout is the wire format of loan dates.
const DateLayout = "2006-01-02"

// LoanInput is the request body of a new loan.
type LoanInput struct {
	ISBN     string `json:"isbn"`
	Customer string `json:"customer"`
}

type LoanOutput struct {
	ID       int64              `json:"id"`
	Customer string             `json:"customer"`
	Book     catalog.BookOutput `json:"book"`
	LoanDate string             `json:"loanDate"`
	Returned bool               `json:"returned"`
}

func ToOutput(l Loan) LoanOutput {
	return LoanOutput{
		ID:       l.ID,
		Customer: l.Customer,
		Book:     catalog.ToOutput(l.Book),
		LoanDate: l.LoanDate.Format(DateLayout),
		Returned: l.Returned,
	}
}

type Handler struct {
	service Service
	errors  *httpapi.Errors
}

func NewHandler(service Service, errors *httpapi.Errors) *Handler {
	return &Handler{service: service, errors: errors}
}

// Routes mounts the loan endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.handleLend)
}

func (h *Handler) handleLend(w http.ResponseWriter, r *http.Request) {
	var in LoanInput
	if err := httpapi.DecodeJSON(r, &in); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	v := httpapi.NewValidator()
	v.Required(in.ISBN, "isbn", catalog.MsgISBNRequired)
	v.Required(in.Customer, "customer", MsgCustomerRequired)
	if err := v.Err(); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	loan, err := h.service.Lend(r.Context(), strings.TrimSpace(in.ISBN), strings.TrimSpace(in.Customer))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, ToOutput(*loan))
}
