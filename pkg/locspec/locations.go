// Package locspec parses the location arguments accepted by terminal
// commands.
//
// The only location form is a raw virtual address written in hexadecimal:
//
//	hex_addr := ["0x"] 1*HEXDIG
package locspec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errEmptyAddress = errors.New("empty address")
	errNotHex       = errors.New("not a hexadecimal number")
)

// AddressParseError is returned when operator supplied text is not a valid
// hexadecimal address.
type AddressParseError struct {
	Text string
	Err  error
}

func (e *AddressParseError) Error() string {
	return fmt.Sprintf("invalid address %q: %v", e.Text, e.Err)
}

func (e *AddressParseError) Unwrap() error {
	return e.Err
}

// ParseAddress parses s as a hexadecimal address with an optional lower
// case "0x" prefix. Signs, underscores and an upper case prefix are
// rejected.
func ParseAddress(s string) (uint64, error) {
	digits := strings.TrimPrefix(s, "0x")
	if digits == "" {
		return 0, &AddressParseError{Text: s, Err: errEmptyAddress}
	}
	for _, ch := range digits {
		if !isHexDigit(ch) {
			return 0, &AddressParseError{Text: s, Err: errNotHex}
		}
	}
	addr, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &AddressParseError{Text: s, Err: err}
	}
	return addr, nil
}

func isHexDigit(ch rune) bool {
	return ('0' <= ch && ch <= '9') || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}
