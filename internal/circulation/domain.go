// internal/circulation/domain.go
package circulation

import (
	"time"

	"libraryloans/internal/catalog"
)

const (
	MsgBookAlreadyLoaned = "Livro já emprestado"
	MsgCustomerRequired  = "Informe o cliente"
	MsgLoanBookRequired  = "Loan book id cant be null or zero"
	AggregateTypeLoan    = "loan"
)

// Loan records a book lent to a customer. A loan is open until Returned is set.
type Loan struct {
	ID       int64        `json:"id"`
	Customer string       `json:"customer"`
	Book     catalog.Book `json:"book"`
	LoanDate time.Time    `json:"loanDate"`
	Returned bool         `json:"returned"`
}

// LoanCreatedEvent is journaled when a loan is registered.
type LoanCreatedEvent struct {
	LoanID   int64     `json:"loan_id"`
	BookID   int64     `json:"book_id"`
	ISBN     string    `json:"isbn"`
	Customer string    `json:"customer"`
	LoanDate time.Time `json:"loan_date"`
}
