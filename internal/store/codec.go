package store

import (
	"encoding/json"
	"time"

	"github.com/colby-usm/GrantGuru/internal/model"
	"github.com/colby-usm/GrantGuru/internal/normalize"
)

func encodeContact(poc model.PointOfContact) string {
	return normalize.SerializeNested(poc)
}

// decodeContact tolerates blobs written by older versions; an unreadable
// blob yields an empty contact.
func decodeContact(s string) model.PointOfContact {
	var poc model.PointOfContact
	_ = json.Unmarshal([]byte(s), &poc)
	return poc
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
