package api

import (
	"fmt"
	"strconv"
	"strings"
)

// etagFor renders a contact revision as a strong ETag.
func etagFor(revision int64) string {
	return fmt.Sprintf("%q", strconv.FormatInt(revision, 10))
}

// parseIfMatch extracts the revision from an If-Match header value. A
// malformed token parses as false; the caller then lets the revision check
// fail so the response carries the current ETag.
func parseIfMatch(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "W/")
	value = strings.Trim(value, `"`)
	rev, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return rev, true
}
