package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Object names encode ownership and slot position:
//
//	user-{userId}-slot-{n}-{timestamp}   owned by a user, n is 1-based
//	slot-{n}-{timestamp}                 legacy, read-only, accepted only
//	                                     when no identity is present
//
// Names that fail to parse, or whose slot number falls outside the grid, are
// skipped during reconciliation rather than treated as errors.
var slotNamePattern = regexp.MustCompile(`^slot-(\d+)-(\d*)`)

type objectRef struct {
	name  string
	slot  int   // zero-based
	stamp int64 // upload timestamp parsed from the name, 0 if absent
}

func formatObjectName(userID string, slot int, now time.Time) string {
	base := fmt.Sprintf("slot-%d-%d", slot+1, now.UnixMilli())
	if userID == "" {
		return base
	}
	return fmt.Sprintf("user-%s-%s", userID, base)
}

// parseObjectName applies the identity filter and the naming convention.
// With a user, only names carrying that user's prefix are eligible; without
// one, only bare legacy names are.
func parseObjectName(name, userID string) (objectRef, bool) {
	rest := name
	if userID != "" {
		var ok bool
		rest, ok = strings.CutPrefix(name, "user-"+userID+"-")
		if !ok {
			return objectRef{}, false
		}
	} else if strings.HasPrefix(name, "user-") {
		return objectRef{}, false
	}

	match := slotNamePattern.FindStringSubmatch(rest)
	if match == nil {
		return objectRef{}, false
	}
	oneBased, err := strconv.Atoi(match[1])
	if err != nil {
		return objectRef{}, false
	}
	slot := oneBased - 1
	if slot < 0 || slot >= SlotCount {
		return objectRef{}, false
	}
	stamp, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		stamp = 0
	}
	return objectRef{name: name, slot: slot, stamp: stamp}, true
}

// newerThan is the deterministic collision tie-break: newest parsed
// timestamp wins, lexically greatest name on equal timestamps.
func (r objectRef) newerThan(other objectRef) bool {
	if r.stamp != other.stamp {
		return r.stamp > other.stamp
	}
	return r.name > other.name
}

// objectNameFromURL derives the stored object name from a public URL's final
// path segment.
func objectNameFromURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	segment := parsed.Path
	if idx := strings.LastIndex(segment, "/"); idx >= 0 {
		segment = segment[idx+1:]
	}
	if segment == "" {
		return "", fmt.Errorf("image url %q has no object name", rawURL)
	}
	name, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("unescape object name: %w", err)
	}
	return name, nil
}
