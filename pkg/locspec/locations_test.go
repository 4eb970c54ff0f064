package locspec

import (
	"errors"
	"strconv"
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		addr uint64
		ok   bool
	}{
		{"0x114c", 0x114c, true},
		{"114c", 0x114c, true},
		{"0x1135", 4405, true},
		{"0xDEADbeef", 0xdeadbeef, true},
		{"0", 0, true},
		{"0xffffffffffffffff", 0xffffffffffffffff, true},
		{"zz", 0, false},
		{"", 0, false},
		{"0x", 0, false},
		{"0X10", 0, false},
		{"-1", 0, false},
		{"+10", 0, false},
		{"0x1_0", 0, false},
		{"0x0x10", 0, false},
		{"0x10000000000000000", 0, false},
	}
	for _, tc := range tests {
		addr, err := ParseAddress(tc.in)
		if !tc.ok {
			var perr *AddressParseError
			if !errors.As(err, &perr) {
				t.Errorf("%q: expected *AddressParseError, got %v", tc.in, err)
				continue
			}
			if perr.Text != tc.in {
				t.Errorf("%q: error carries text %q", tc.in, perr.Text)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.in, err)
			continue
		}
		if addr != tc.addr {
			t.Errorf("%q: expected %#x, got %#x", tc.in, tc.addr, addr)
		}
	}
}

func TestParseAddressOverflowUnwraps(t *testing.T) {
	_, err := ParseAddress("10000000000000000")
	if !errors.Is(err, strconv.ErrRange) {
		t.Fatalf("expected range error, got %v", err)
	}
}
