// Package reference builds and parses payment correlation references.
//
// A reference ties a provider callback back to the originating application.
// The wire format is "APP-<applicationId>" with an optional "-<disambiguator>"
// suffix so that retried initiations never collide at the provider.
package reference

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const prefix = "APP-"

// Build returns a fresh reference for an application. The timestamp suffix
// distinguishes retries of the same application.
func Build(applicationID int64) string {
	return fmt.Sprintf("%s%d-%d", prefix, applicationID, time.Now().UnixNano())
}

// Parse recovers the application id from a reference. It accepts both the
// bare "APP-<id>" form and the suffixed "APP-<id>-<disambiguator>" form.
// ok is false for anything that does not follow the convention.
func Parse(ref string) (applicationID int64, ok bool) {
	if !strings.HasPrefix(ref, prefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(ref, prefix)
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		rest = rest[:i]
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
