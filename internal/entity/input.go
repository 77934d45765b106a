package entity

import "github.com/google/uuid"

// InputFile is one file submitted to a batch job. Data may be supplied
// inline; when empty, the processor fetches the blob from the object store
// under StorageKey.
type InputFile struct {
	ID         uuid.UUID
	Name       string
	Data       []byte
	StorageKey string
}
