package store

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/inboxtools/outlook-mcp/model"
)

// AttachmentEntry is one cached attachment blob plus a content hash used for
// cheap equality checks in diagnostics.
type AttachmentEntry struct {
	Handle      string
	CreatedAt   time.Time
	ContentHash string
	Attachment  model.Attachment
}

// AttachmentCache stores attachment blobs under deterministic
// parentID:itemID handles. Setting the same attachment twice hits the same
// entry, so a repeated fetch never duplicates the blob.
type AttachmentCache struct {
	cache *Cache[AttachmentEntry]
}

// NewAttachmentCache creates an attachment cache with the given options.
func NewAttachmentCache(opts Options) (*AttachmentCache, error) {
	c, err := New[AttachmentEntry](opts)
	if err != nil {
		return nil, err
	}
	return &AttachmentCache{cache: c}, nil
}

// Set stores att under its deterministic handle and returns that handle.
// Idempotent: the same (parent, item) pair always yields the same handle,
// and a live entry is left untouched.
func (a *AttachmentCache) Set(att model.Attachment) string {
	handle := AttachmentHandle(att.ParentID, att.ItemID)
	a.cache.Put(handle, AttachmentEntry{
		Handle:      handle,
		CreatedAt:   time.Now(),
		ContentHash: hashContent(att.Data),
		Attachment:  att,
	})
	return handle
}

// Get returns the entry for handle, or a miss when absent or expired.
func (a *AttachmentCache) Get(handle string) (AttachmentEntry, bool) {
	return a.cache.Get(handle)
}

// List returns the handles of all live entries in insertion order.
func (a *AttachmentCache) List() []string {
	return a.cache.List()
}

// Remove deletes the entry for handle, reporting whether one was removed.
func (a *AttachmentCache) Remove(handle string) bool {
	return a.cache.Remove(handle)
}

// Clear removes every cached attachment.
func (a *AttachmentCache) Clear() {
	a.cache.Clear()
}

// Stop terminates the background sweep.
func (a *AttachmentCache) Stop() {
	a.cache.Stop()
}

// hashContent uses xxHash: non-cryptographic but fast, which is all a
// dedup/diagnostic hash needs.
func hashContent(data []byte) string {
	h := xxhash.Sum64(data)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return hex.EncodeToString(buf[:])
}
