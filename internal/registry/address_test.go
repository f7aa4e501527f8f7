package registry

import (
	"errors"
	"strings"
	"testing"
)

func TestAddressesAreDeterministicAndDistinct(t *testing.T) {
	if UserAddress("15551234") != UserAddress("15551234") {
		t.Fatalf("user address is not deterministic")
	}
	if UserAddress("15551234") == UserAddress("15551235") {
		t.Fatalf("distinct phones share an address")
	}
	if StateAddress() == UserAddress("") {
		t.Fatalf("state and user namespaces collide")
	}
	if got := len(StateAddress().String()); got != 64 {
		t.Fatalf("expected 64 hex chars, got %d", got)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"15551234":          "15551234",
		"+1 (555) 123-4":    "15551234",
		" 44 20 7946 0958 ": "442079460958",
	}
	for raw, want := range cases {
		got, err := NormalizePhone(raw)
		if err != nil {
			t.Fatalf("normalize %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("normalize %q: expected %s, got %s", raw, want, got)
		}
	}

	for _, raw := range []string{"", "+-()", strings.Repeat("1", MaxPhoneLen+1)} {
		if _, err := NormalizePhone(raw); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("normalize %q: expected ErrInvalidPhone, got %v", raw, err)
		}
	}
}

func TestAccountCodecRejectsWrongKind(t *testing.T) {
	acct, err := encodeState(State{Admin: admin, TotalUsers: 7})
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	if _, err := decodeUser(acct); !errors.Is(err, ErrCorruptAccount) {
		t.Fatalf("expected ErrCorruptAccount, got %v", err)
	}
	state, err := decodeState(acct)
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Admin != admin || state.TotalUsers != 7 {
		t.Fatalf("unexpected state %+v", state)
	}

	if _, err := decodeState(Account{Kind: KindState, Data: []byte{0xc1}}); !errors.Is(err, ErrCorruptAccount) {
		t.Fatalf("expected ErrCorruptAccount for garbage, got %v", err)
	}
	if _, err := encodeState(State{Admin: Identity(strings.Repeat("a", MaxIdentityLen+1))}); !errors.Is(err, ErrAllocation) {
		t.Fatalf("expected ErrAllocation for long admin, got %v", err)
	}
}
