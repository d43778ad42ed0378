package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Two handle strategies coexist on purpose. Search results get random
// handles because each search is a distinct event; attachments get a
// deterministic composite key because (parentID, itemID) already identifies
// the blob and re-fetching it must hit the same entry.

// GenerateHandle returns a process-unique opaque handle for a search entry:
// millisecond timestamp plus a UUID suffix. Collision-resistant for the
// lifetime of the process.
func GenerateHandle() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// AttachmentHandle returns the deterministic handle for an attachment,
// composed from its parent message id and item id. Calling it twice with the
// same pair yields the same handle, which makes attachment caching
// idempotent.
func AttachmentHandle(parentID, itemID string) string {
	return parentID + ":" + itemID
}

// SplitAttachmentHandle splits a composite attachment handle back into its
// parent and item ids. Reports false when the handle is not a composite.
func SplitAttachmentHandle(handle string) (parentID, itemID string, ok bool) {
	i := strings.Index(handle, ":")
	if i <= 0 || i == len(handle)-1 {
		return "", "", false
	}
	return handle[:i], handle[i+1:], true
}
