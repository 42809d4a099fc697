package storage

import "context"

// BlobStore writes attachment bytes and returns a retrievable locator.
// The realtime ingestion path and the post handlers both consume this
// narrow interface so tests can substitute an in-memory store. Delete
// takes a locator previously returned by Write.
type BlobStore interface {
	Write(ctx context.Context, data []byte, suggestedName string) (string, error)
	Delete(ctx context.Context, locator string) error
}
