package http

import (
	"errors"
	"net/http"
	"strings"

	"finwise/internal/core"
)

// maxFormBytes bounds request bodies; every form here is a handful of fields.
const maxFormBytes = 64 << 10

var errBadForm = errors.New("malformed form submission")

// parseForm reads a urlencoded body of bounded size.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return errBadForm
	}
	return nil
}

// formValue returns a trimmed form field with control characters removed.
// Passwords must be read with r.PostFormValue instead: they are taken verbatim.
func formValue(r *http.Request, key string) string {
	return sanitizeInput(r.PostFormValue(key))
}

// sanitizeInput drops control characters other than tab and newline and trims
// surrounding whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s))
}

// parseAmount parses a non-negative decimal amount such as "250.00".
func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// parseDateOrToday parses YYYY-MM-DD; an empty value means today.
func (s *Server) parseDateOrToday(v string) (core.Date, error) {
	if strings.TrimSpace(v) == "" {
		return core.DateOf(s.now()), nil
	}
	return core.ParseDate(v)
}
