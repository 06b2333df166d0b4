package notification

import (
	"fmt"
	"strconv"
	"strings"
)

// CurrentID is the reserved section token resolving to the section that
// contains the high-water mark.
const CurrentID = "current"

// Notification is a delivery-oriented projection of a stored item. ID is the
// 1-based global position. Data passes through opaquely; encrypted payloads
// stay encrypted.
type Notification struct {
	ID    uint64 `json:"id"`
	Topic string `json:"topic"`
	Data  []byte `json:"data"`
}

// Section is a fixed-size page of notifications. It is derived, never stored:
// every read recomputes it from the underlying items. A nil entry in Items is
// a gap below the high-water mark.
type Section struct {
	ID       string          `json:"id"`
	Previous *string         `json:"previous,omitempty"`
	Next     *string         `json:"next,omitempty"`
	Archived bool            `json:"archived"`
	Items    []*Notification `json:"items"`
}

// First returns the first notification ID of the section's window.
func (s Section) First() uint64 {
	first, _, err := ParseSectionID(s.ID)
	if err != nil {
		return 0
	}
	return first
}

// FormatSectionID encodes an inclusive 1-based range.
func FormatSectionID(first, last uint64) string {
	return strconv.FormatUint(first, 10) + "," + strconv.FormatUint(last, 10)
}

// ParseSectionID decodes "first,last". The token "current" is handled by the
// log, not here.
func ParseSectionID(id string) (first, last uint64, err error) {
	parts := strings.Split(id, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("notification: malformed section id %q", id)
	}
	first, err = strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || first == 0 {
		return 0, 0, fmt.Errorf("notification: malformed section id %q", id)
	}
	last, err = strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("notification: malformed section id %q", id)
	}
	return first, last, nil
}
