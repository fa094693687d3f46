package crypto

import (
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.Prefix() != AccountPrefix {
		t.Fatalf("unexpected prefix: %s", addr.Prefix())
	}
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(AccountPrefix)) {
		t.Fatalf("encoded address missing prefix: %s", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: %s != %s", decoded, addr)
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	a := ModuleAddress("pool/USDX")
	b := ModuleAddress("pool/USDX")
	if !a.Equal(b) {
		t.Fatalf("module address not deterministic")
	}
	c := ModuleAddress("pool/WETH")
	if a.Equal(c) {
		t.Fatalf("distinct modules share an address")
	}
	if a.Prefix() != ModulePrefix {
		t.Fatalf("unexpected module prefix: %s", a.Prefix())
	}
}

func TestIsZero(t *testing.T) {
	var empty Address
	if !empty.IsZero() {
		t.Fatalf("empty address should be zero")
	}
	if ModuleAddress("manager").IsZero() {
		t.Fatalf("derived address reported zero")
	}
}
