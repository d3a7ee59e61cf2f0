package datastore

import (
	"errors"

	"github.com/google/uuid"
)

// maxIDAttempts bounds the generate-check-retry loop in UniqueID.
const maxIDAttempts = 16

// ErrIDExhausted is returned when every candidate id was already taken.
var ErrIDExhausted = errors.New("no free id after retries")

// randomID folds a random UUID into 32 bits by XOR-ing its halves.
func randomID() int32 {
	return foldUUID(uuid.New())
}

func foldUUID(u uuid.UUID) int32 {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(u[i])
		lo = lo<<8 | uint64(u[i+8])
	}
	x := hi ^ lo
	return int32(uint32(x>>32) ^ uint32(x)) //nolint:gosec // G115: intentional wrap into the id space
}
