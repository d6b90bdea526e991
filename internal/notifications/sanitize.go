package notifications

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// policy is safe for concurrent use once built.
var policy = bluemonday.UGCPolicy()

// Sanitize removes active content from organizer-authored HTML.
func Sanitize(html string) string {
	return strings.TrimSpace(policy.Sanitize(html))
}
