// Package refcode encodes game ids into short, stable reference strings
// that players pass to the /delete command. The encoding is a salted
// bijection (hashids), so distinct game ids always yield distinct
// references and a reference decodes back to its game id.
package refcode

import (
	"errors"
	"fmt"

	hashids "github.com/speps/go-hashids/v2"
)

// ErrInvalidReference is returned when a string does not decode to a
// game id under the configured salt.
var ErrInvalidReference = errors.New("invalid reference")

// Codec encodes and decodes game references.
type Codec struct {
	h *hashids.HashID
}

// New creates a Codec. The salt must stay stable across restarts or
// previously issued references become undecodable.
func New(salt string, minLength int) (*Codec, error) {
	if salt == "" {
		return nil, errors.New("refcode: salt must not be empty")
	}
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = minLength

	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, fmt.Errorf("refcode: %w", err)
	}
	return &Codec{h: h}, nil
}

// Encode returns the reference string for a game id.
func (c *Codec) Encode(gameID int64) (string, error) {
	if gameID < 0 {
		return "", fmt.Errorf("refcode: game id must be non-negative, got %d", gameID)
	}
	ref, err := c.h.EncodeInt64([]int64{gameID})
	if err != nil {
		return "", fmt.Errorf("refcode: encode %d: %w", gameID, err)
	}
	return ref, nil
}

// Decode recovers the game id from a reference string. Returns
// ErrInvalidReference for strings not produced by Encode under this salt.
func (c *Codec) Decode(ref string) (int64, error) {
	ids, err := c.h.DecodeInt64WithError(ref)
	if err != nil || len(ids) != 1 {
		return 0, ErrInvalidReference
	}
	return ids[0], nil
}
