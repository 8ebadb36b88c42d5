package util

import (
	"crypto/md5"
	"encoding/json"

	"github.com/google/uuid"
)

// HashUUID is the md5 of the JSON form of value as a UUID; equal values
// give equal UUIDs
func HashUUID(value any) (uuid.UUID, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return uuid.Nil, err
	}
	sum := md5.Sum(raw)
	return uuid.FromBytes(sum[:])
}
