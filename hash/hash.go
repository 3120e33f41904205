package hash

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Size is the byte length of a BlockHash.
const Size = 32

// BlockHash is a fixed-width 256-bit block identifier. The zero value
// denotes "no hash" and is used by the controller to mean "no parent"
// or "no current tip".
type BlockHash [Size]byte

// ErrInvalidFormat is returned when a hex string cannot be parsed into
// a BlockHash.
var ErrInvalidFormat = fmt.Errorf("invalid block hash format")

// Zero is the reserved "no hash" value.
var Zero = BlockHash{}

// FromHex parses a lowercase hex string into a BlockHash. It fails with
// ErrInvalidFormat if the string is not exactly 64 hex characters.
func FromHex(s string) (BlockHash, error) {
	var h BlockHash
	if len(s) != Size*2 {
		return h, ErrInvalidFormat
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	copy(h[:], b)
	return h, nil
}

// Hex serializes the BlockHash to a lowercase hex string.
func (h BlockHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements fmt.Stringer.
func (h BlockHash) String() string {
	return h.Hex()
}

// IsZero reports whether h is the reserved "no hash" value.
func (h BlockHash) IsZero() bool {
	return h == Zero
}

// Equal reports byte-for-byte equality.
func (h BlockHash) Equal(o BlockHash) bool {
	return h == o
}

// Compare returns -1, 0 or 1 using byte-wise lexicographic order,
// giving BlockHash a total order.
func (h BlockHash) Compare(o BlockHash) int {
	return bytes.Compare(h[:], o[:])
}

// Bytes returns a copy of the underlying 32 bytes.
func (h BlockHash) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, h[:])
	return b
}

// FromBytes builds a BlockHash from a 32-byte slice. It fails with
// ErrInvalidFormat if the slice is not exactly Size bytes long.
func FromBytes(b []byte) (BlockHash, error) {
	var h BlockHash
	if len(b) != Size {
		return h, ErrInvalidFormat
	}
	copy(h[:], b)
	return h, nil
}

// MarshalJSON implements json.Marshaler, encoding as a hex string.
func (h BlockHash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *BlockHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := FromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
