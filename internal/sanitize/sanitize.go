// Package sanitize strips HTML and script content from user-supplied text
// before it reaches the conversation directory or the message store.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Text removes all HTML elements and attributes from s and trims the
// surrounding whitespace.
func Text(s string) string {
	return strings.TrimSpace(policy.Sanitize(s))
}
