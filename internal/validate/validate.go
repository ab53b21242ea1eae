// Package validate contains pure shape checks applied to incoming entries
// before anything touches storage.
package validate

import (
	"regexp"

	"github.com/akulikov/stashkeeper/internal/common"
)

// MaxCategoryLength is the longest allowed category tag.
const MaxCategoryLength = 20

var categoryRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,20}$`)

// Category checks a category tag: 1–20 characters, alphanumeric and
// underscore only. Returns common.ErrInvalidCategory otherwise.
func Category(s string) (string, error) {
	if !categoryRe.MatchString(s) {
		return "", common.ErrInvalidCategory
	}
	return s, nil
}

// Payload checks that a payload is non-empty.
// Returns common.ErrEmptyPayload otherwise.
func Payload(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, common.ErrEmptyPayload
	}
	return b, nil
}
