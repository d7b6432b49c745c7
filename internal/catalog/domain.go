// internal/catalog/domain.go
package catalog

import (
	"strings"

	"libraryloans/internal/apperr"
)

const (
	MsgBookNotFound   = "Livro não encontrado"
	MsgDuplicateISBN  = "ISBN já cadastrado"
	MsgInvalidBookID  = "Book id cant be null or zero"
	MsgBookHasLoans   = "Livro possui empréstimos registrados"
	MsgTitleRequired  = "Informe o título"
	MsgAuthorRequired = "Informe o autor"
	MsgISBNRequired   = "Informe o isbn"
	MsgInvalidBook    = "Um ou mais campos estão inválidos. Faça o preenchimento correto e tente novamente"
	AggregateTypeBook = "book"
)

// Book is a catalogued title. ID is zero until the store assigns one.
type Book struct {
	ID     int64  `json:"id" db:"id"`
	Title  string `json:"title" db:"title"`
	Author string `json:"author" db:"author"`
	ISBN   string `json:"isbn" db:"isbn"`
}

// Validate reports every blank required attribute of b.
func (b Book) Validate() error {
	var fields []apperr.FieldError
	if strings.TrimSpace(b.Title) == "" {
		fields = append(fields, apperr.FieldError{Name: "title", Message: MsgTitleRequired})
	}
	if strings.TrimSpace(b.Author) == "" {
		fields = append(fields, apperr.FieldError{Name: "author", Message: MsgAuthorRequired})
	}
	if strings.TrimSpace(b.ISBN) == "" {
		fields = append(fields, apperr.FieldError{Name: "isbn", Message: MsgISBNRequired})
	}
	if len(fields) > 0 {
		return apperr.Validation(MsgInvalidBook, fields...)
	}
	return nil
}

// Field names a searchable book attribute.
type Field string

const (
	FieldTitle  Field = "title"
	FieldAuthor Field = "author"
	FieldISBN   Field = "isbn"
)

// Value returns the attribute of b named by f.
func (f Field) Value(b Book) string {
	switch f {
	case FieldTitle:
		return b.Title
	case FieldAuthor:
		return b.Author
	case FieldISBN:
		return b.ISBN
	default:
		return ""
	}
}

// MatchMode says how a Condition compares its value.
type MatchMode int

const (
	// MatchContains is a case-insensitive substring match.
	MatchContains MatchMode = iota
	// MatchExact is plain equality.
	MatchExact
)

// Condition restricts one field of a BookQuery.
type Condition struct {
	Field Field
	Value string
	Mode  MatchMode
}

// Matches reports whether b satisfies c.
func (c Condition) Matches(b Book) bool {
	got := c.Field.Value(b)
	if c.Mode == MatchExact {
		return got == c.Value
	}
	return strings.Contains(strings.ToLower(got), strings.ToLower(c.Value))
}

// BookQuery selects books by field conditions. Fields without a condition
// match anything, so the zero BookQuery matches every book.
type BookQuery struct {
	conditions []Condition
}

// NewBookQuery returns a query with no conditions.
func NewBookQuery() BookQuery {
	return BookQuery{}
}

// Contains adds a case-insensitive substring condition. Empty values are ignored.
func (q BookQuery) Contains(field Field, value string) BookQuery {
	return q.with(Condition{Field: field, Value: value, Mode: MatchContains})
}

// Equals adds an exact-match condition. Empty values are ignored.
func (q BookQuery) Equals(field Field, value string) BookQuery {
	return q.with(Condition{Field: field, Value: value, Mode: MatchExact})
}

func (q BookQuery) with(c Condition) BookQuery {
	if c.Value == "" {
		return q
	}
	conditions := make([]Condition, 0, len(q.conditions)+1)
	conditions = append(conditions, q.conditions...)
	conditions = append(conditions, c)
	return BookQuery{conditions: conditions}
}

// Conditions returns the conditions in the order they were added.
func (q BookQuery) Conditions() []Condition {
	return q.conditions
}

// Matches reports whether b satisfies every condition of q.
func (q BookQuery) Matches(b Book) bool {
	for _, c := range q.conditions {
		if !c.Matches(b) {
			return false
		}
	}
	return true
}

// BookCreatedEvent is journaled when a book is first stored.
type BookCreatedEvent struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// BookUpdatedEvent is journaled with the state written by an update.
type BookUpdatedEvent struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// BookDeletedEvent is journaled when a book is removed.
type BookDeletedEvent struct {
	ID   int64  `json:"id"`
	ISBN string `json:"isbn"`
}
