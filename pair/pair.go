package pair

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidPair is returned for self-pairs and malformed asset identifiers.
var ErrInvalidPair = errors.New("invalid pair")

// AssetID identifies a fungible asset type. Its canonical textual
// representation is the string itself.
type AssetID string

// Ordering is the result of comparing two asset identifiers.
type Ordering int8

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return "unknown"
	}
}

// Compare orders two assets byte-wise over their textual form. When one is a
// prefix of the other the shorter one sorts first.
func Compare(a, b AssetID) Ordering {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] < b[i] {
			return Less
		}
		if a[i] > b[i] {
			return Greater
		}
	}
	switch {
	case len(a) < len(b):
		return Less
	case len(a) > len(b):
		return Greater
	default:
		return Equal
	}
}

// Key is the canonical identity of an unordered asset pair. Low always sorts
// strictly before High.
type Key struct {
	Low  AssetID `json:"low"`
	High AssetID `json:"high"`
}

// Canonicalize returns the unique Key for {a, b}, independent of argument order.
func Canonicalize(a, b AssetID) (Key, error) {
	if a == "" || b == "" {
		return Key{}, fmt.Errorf("%w: asset identifier must not be empty", ErrInvalidPair)
	}
	switch Compare(a, b) {
	case Less:
		return Key{Low: a, High: b}, nil
	case Greater:
		return Key{Low: b, High: a}, nil
	default:
		return Key{}, fmt.Errorf("%w: cannot pair %q with itself", ErrInvalidPair, a)
	}
}

// Validate reports whether k is in canonical form. Keys decoded from the wire
// are not trusted to be.
func (k Key) Validate() error {
	if k.Low == "" || k.High == "" {
		return fmt.Errorf("%w: asset identifier must not be empty", ErrInvalidPair)
	}
	if Compare(k.Low, k.High) != Less {
		return fmt.Errorf("%w: %s is not in canonical order", ErrInvalidPair, k)
	}
	return nil
}

// Flipped reports whether asset a sits on the high side of k.
func (k Key) Flipped(a AssetID) bool {
	return a == k.High
}

// Contains reports whether asset a is one of the two sides of k.
func (k Key) Contains(a AssetID) bool {
	return a == k.Low || a == k.High
}

// PoolID derives a stable 32-byte identifier for the pool of this pair.
// Low is length-prefixed so that distinct pairs never share a preimage.
func (k Key) PoolID() common.Hash {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(k.Low)))
	h := sha3.NewLegacyKeccak256()
	h.Write(prefix[:])
	h.Write([]byte(k.Low))
	h.Write([]byte(k.High))
	return common.BytesToHash(h.Sum(nil))
}

// Less orders keys by Low, then High.
func (k Key) Less(o Key) bool {
	if c := Compare(k.Low, o.Low); c != Equal {
		return c == Less
	}
	return Compare(k.High, o.High) == Less
}

func (k Key) String() string {
	return string(k.Low) + "/" + string(k.High)
}
