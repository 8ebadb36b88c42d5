package dicom

import (
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/jpfielding/qreport.go/pkg/util"
)

// UIDRoot is the root for UUID derived UIDs (PS3.5 Annex B.2)
const UIDRoot = "2.25"

// GenerateUID generates a DICOM unique identifier. Without a prefix the
// result is 2.25.<UUID as decimal>; with a prefix the decimal UUID is
// appended to it and truncated to the 64 character limit.
func GenerateUID(prefix string) string {
	return uidFrom(prefix, uuid.New())
}

// NewUID returns a UID under the 2.25 root
func NewUID() string {
	return GenerateUID("")
}

// HashUID derives a stable 2.25 UID from value; see util.HashUUID
func HashUID(value any) (string, error) {
	u, err := util.HashUUID(value)
	if err != nil {
		return "", err
	}
	return uidFrom("", u), nil
}

func uidFrom(prefix string, u uuid.UUID) string {
	n := new(big.Int).SetBytes(u[:]).String()

	if prefix == "" {
		prefix = UIDRoot
	}
	prefix = strings.TrimSuffix(prefix, ".")
	uid := prefix + "." + n
	if len(uid) > 64 {
		uid = strings.TrimRight(uid[:64], ".")
	}
	return uid
}
