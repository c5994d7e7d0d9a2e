// internal/random/random.go
package random

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxSafeInt is the largest bound accepted by Intn. It matches the integer
// ceiling of the browser client so both sides accept the same inputs.
const MaxSafeInt int64 = 1<<53 - 1

// ErrOutOfRange is returned when the requested bound is not in [1, MaxSafeInt].
var ErrOutOfRange = errors.New("max must be between 1 and MaxSafeInt")

// Source produces uniformly distributed integers in [0, max).
type Source interface {
	Intn(max int) (int, error)
}

// Secure draws from a cryptographically strong entropy source and removes
// modulo bias by rejection sampling.
type Secure struct {
	// Reader defaults to crypto/rand.Reader when nil.
	Reader io.Reader
}

// NewSecure returns a Source backed by crypto/rand.
func NewSecure() *Secure {
	return &Secure{Reader: rand.Reader}
}

// Intn returns a value in [0, max). Draws of 32-bit values at or above
// floor(2^32/max)*max are rejected before reducing by modulo.
func (s *Secure) Intn(max int) (int, error) {
	if max <= 0 || int64(max) > MaxSafeInt {
		return 0, fmt.Errorf("intn(%d): %w", max, ErrOutOfRange)
	}

	r := s.Reader
	if r == nil {
		r = rand.Reader
	}

	m := uint64(max)
	if m <= 1<<32 {
		limit := (uint64(1) << 32) / m * m
		var buf [4]byte
		for {
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return 0, fmt.Errorf("read entropy: %w", err)
			}
			v := uint64(binary.LittleEndian.Uint32(buf[:]))
			if v < limit {
				return int(v % m), nil
			}
		}
	}

	// Bounds above 2^32 need 64-bit draws; same rejection rule.
	// limit = 2^64 - (2^64 mod m)
	rem := (^uint64(0)%m + 1) % m
	var buf [8]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, fmt.Errorf("read entropy: %w", err)
		}
		v := binary.LittleEndian.Uint64(buf[:])
		if rem == 0 || v < -rem {
			return int(v % m), nil
		}
	}
}

// Sequence replays a fixed list of values, reduced modulo max. It wraps
// around when exhausted. Used for reproducible fixtures.
type Sequence struct {
	Values []int
	pos    int
}

// NewSequence returns a deterministic Source replaying values.
func NewSequence(values ...int) *Sequence {
	return &Sequence{Values: values}
}

func (s *Sequence) Intn(max int) (int, error) {
	if max <= 0 || int64(max) > MaxSafeInt {
		return 0, fmt.Errorf("intn(%d): %w", max, ErrOutOfRange)
	}
	if len(s.Values) == 0 {
		return 0, nil
	}
	v := s.Values[s.pos%len(s.Values)]
	s.pos++
	if v < 0 {
		v = -v
	}
	return v % max, nil
}

// Draws reports how many values have been consumed.
func (s *Sequence) Draws() int { return s.pos }

// Code builds a string of length n using characters from alphabet.
func Code(src Source, n int, alphabet string) (string, error) {
	b := make([]byte, n)
	for i := range b {
		idx, err := src.Intn(len(alphabet))
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx]
	}
	return string(b), nil
}
