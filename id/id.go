package id

import (
	"time"

	"github.com/rs/xid"
)

// Generate returns a new globally unique ID. IDs embed their creation
// time, so their lexicographic order matches creation order.
func Generate() string {
	return xid.New().String()
}

// GenerateAt returns an ID anchored at the given time. Meant for test
// fixtures that need deterministic ordering.
func GenerateAt(t time.Time) string {
	return xid.NewWithTime(t).String()
}

func Valid(s string) bool {
	id, err := xid.FromString(s)
	if err != nil {
		return false
	}
	return !id.IsNil() && !id.IsZero()
}
