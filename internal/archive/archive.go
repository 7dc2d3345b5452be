// Package archive writes a transcript of every cleared conversation to
// blob storage before the owner's watermark moves.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/pkg/storage"
)

const keyPrefix = "deleted_chats/"

// Archiver persists the messages about to be hidden by a clear.
type Archiver interface {
	Archive(ctx context.Context, owner, peer string, msgs []domain.Message, clearedAt time.Time) error
}

// StorageArchiver writes plain-text transcripts through a storage backend.
type StorageArchiver struct {
	store storage.Storage
}

func NewStorageArchiver(store storage.Storage) *StorageArchiver {
	return &StorageArchiver{store: store}
}

// Key returns the object key for a clear at clearedAt.
func Key(owner, peer string, clearedAt time.Time) string {
	return fmt.Sprintf("%s%s_deletes_%s/%d.txt", keyPrefix, owner, peer, clearedAt.UnixNano())
}

func (a *StorageArchiver) Archive(ctx context.Context, owner, peer string, msgs []domain.Message, clearedAt time.Time) error {
	body := Transcript(owner, msgs, clearedAt)
	if err := a.store.Write(ctx, Key(owner, peer, clearedAt), bytes.NewReader(body), int64(len(body)), "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("archive %s/%s: %w", owner, peer, err)
	}
	return nil
}

// Transcript renders msgs oldest first.
func Transcript(owner string, msgs []domain.Message, clearedAt time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- Chat history deleted by %s on %s ---\n", owner, clearedAt.UTC().Format(time.RFC3339Nano))
	for _, m := range msgs {
		fmt.Fprintf(&buf, "[%s] %s → %s: %s\n", m.SentAt.UTC().Format(time.RFC3339Nano), m.SenderID, m.ReceiverID, m.Content)
	}
	return buf.Bytes()
}

var _ Archiver = (*StorageArchiver)(nil)
