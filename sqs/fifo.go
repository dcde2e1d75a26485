package sqs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"io"
)

// deduplicationID derives the FIFO deduplication ID of the message at
// position in one send call. Each string is length-prefixed before hashing,
// so ("ab", "c") and ("a", "bc") never collide.
//
// The ID depends only on the group, the body and the position. Repeating the
// same send within the five minute deduplication window delivers nothing new.
func deduplicationID(groupID, body string, position int) string {
	h := sha256.New()

	var n [8]byte

	for _, s := range [...]string{groupID, body} {
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		_, _ = io.WriteString(h, s)
	}

	binary.BigEndian.PutUint64(n[:], uint64(position))
	h.Write(n[:])

	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
