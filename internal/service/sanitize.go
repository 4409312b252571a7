package service

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/uara/dashboard/internal/model"
)

// sanitize strips control characters other than tab, newline and carriage
// return, drops U+FFFD and invalid UTF-8, and returns the NFC form.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\n', r == '\r':
			return r
		case r < 0x20, r == 0x7f, r == utf8.RuneError:
			return -1
		}
		return r
	}, s)
	return norm.NFC.String(s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := sanitize(*s)
	return &clean
}

func sanitizeCreate(in model.CreateRequestInput) model.CreateRequestInput {
	in.Title = sanitize(in.Title)
	in.Description = sanitize(in.Description)
	return in
}
