package httpapi

import (
	"strings"

	"libraryloans/internal/apperr"
)

// Validator collects field errors in the order they are found.
type Validator struct {
	fields []apperr.FieldError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Check records message for field unless ok.
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.fields = append(v.fields, apperr.FieldError{Name: field, Message: message})
	}
}

// Required checks that value is not blank.
func (v *Validator) Required(value, field, message string) {
	v.Check(strings.TrimSpace(value) != "", field, message)
}

func (v *Validator) Valid() bool {
	return len(v.fields) == 0
}

// Err returns a Validation error carrying every recorded field, or nil.
func (v *Validator) Err() error {
	if v.Valid() {
		return nil
	}
	return apperr.Validation(MsgInvalidFields, v.fields...)
}
