package seed

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestKeyed_Deterministic(t *testing.T) {
	t.Parallel()

	src, err := NewKeyed("secret")
	if err != nil {
		t.Fatalf("new keyed: %v", err)
	}

	a, err := src.NextSeed(context.Background(), "round-1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	b, _ := src.NextSeed(context.Background(), "round-1")
	c, _ := src.NextSeed(context.Background(), "round-2")

	if len(a) != Size {
		t.Fatalf("seed size: want %d, got %d", Size, len(a))
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("same round gave different seeds")
	}
	if bytes.Equal(a, c) {
		t.Fatalf("different rounds gave the same seed")
	}

	other, _ := NewKeyed("other-secret")
	d, _ := other.NextSeed(context.Background(), "round-1")
	if bytes.Equal(a, d) {
		t.Fatalf("different keys gave the same seed")
	}
}

func TestKeyed_LongKey(t *testing.T) {
	t.Parallel()

	src, err := NewKeyed(strings.Repeat("k", 200))
	if err != nil {
		t.Fatalf("new keyed: %v", err)
	}

	_, err = src.NextSeed(context.Background(), "r")
	if err != nil {
		t.Fatalf("seed with long key: %v", err)
	}
}

func TestKeyed_Verify(t *testing.T) {
	t.Parallel()

	src, _ := NewKeyed("secret")
	s, _ := src.NextSeed(context.Background(), "round-1")
	recorded := Encode(s)

	tests := []struct {
		name     string
		roundID  string
		recorded string
		wantErr  error
	}{
		{name: "match", roundID: "round-1", recorded: recorded},
		{name: "other_round", roundID: "round-2", recorded: recorded, wantErr: ErrMismatch},
		{name: "not_hex", roundID: "round-1", recorded: "zz", wantErr: ErrBadSeed},
		{name: "short", roundID: "round-1", recorded: "abcd", wantErr: ErrBadSeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := src.Verify(context.Background(), tt.roundID, tt.recorded)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewKeyed_EmptyKey(t *testing.T) {
	t.Parallel()

	_, err := NewKeyed("")
	if !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("want ErrEmptyKey, got %v", err)
	}
}
