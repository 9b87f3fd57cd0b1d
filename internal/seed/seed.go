// Package seed provides the random seeds winner selection is keyed with.
package seed

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Size is the seed length in bytes.
const Size = 32

var (
	ErrEmptyKey  = errors.New("seed key is empty")
	ErrBadSeed   = errors.New("malformed seed")
	ErrMismatch  = errors.New("seed does not match round")
	errShortSeed = fmt.Errorf("%w: want %d bytes", ErrBadSeed, Size)
)

// Source yields the seed recorded for a round at close time.
type Source interface {
	NextSeed(ctx context.Context, roundID string) ([]byte, error)
}

// Keyed derives seeds as BLAKE2b-256 keyed MAC of the round id. Anyone holding the
// key re-derives a round's seed and checks it against the recorded value; without
// the key the seed cannot be predicted before close.
type Keyed struct {
	key []byte
}

func NewKeyed(key string) (*Keyed, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	// blake2b accepts keys up to 64 bytes; longer secrets are hashed down.
	k := []byte(key)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum512(k)
		k = sum[:]
	}

	return &Keyed{key: k}, nil
}

func (s *Keyed) NextSeed(_ context.Context, roundID string) ([]byte, error) {
	h, err := blake2b.New256(s.key)
	if err != nil {
		return nil, fmt.Errorf("init blake2b: %w", err)
	}

	_, _ = h.Write([]byte(roundID))

	return h.Sum(nil), nil
}

// Verify re-derives the round's seed and compares it with the recorded hex value.
func (s *Keyed) Verify(ctx context.Context, roundID, recorded string) error {
	got, err := Decode(recorded)
	if err != nil {
		return err
	}

	want, err := s.NextSeed(ctx, roundID)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare(got, want) != 1 {
		return fmt.Errorf("%w: %s", ErrMismatch, roundID)
	}

	return nil
}

func Encode(seed []byte) string {
	return hex.EncodeToString(seed)
}

func Decode(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSeed, err)
	}

	if len(b) != Size {
		return nil, errShortSeed
	}

	return b, nil
}
