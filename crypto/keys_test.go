package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	raw[0] = 0xAB
	raw[19] = 0x01
	addr := NewAddress(OTCPrefix, raw)

	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(OTCPrefix)+"1") {
		t.Fatalf("encoded address %q lacks the otc prefix", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != OTCPrefix {
		t.Fatalf("prefix %q after round trip", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("payload %x after round trip, want %x", decoded.Bytes(), raw)
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	for _, value := range []string{"", "otc1", "not bech32", "otc1qqqqqqqqqqqq"} {
		if _, err := DecodeAddress(value); err == nil {
			t.Fatalf("decoded %q without error", value)
		}
	}
}

func TestKeyAddressDerivation(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.Prefix() != OTCPrefix {
		t.Fatalf("derived prefix %q", addr.Prefix())
	}
	if len(addr.Bytes()) != 20 {
		t.Fatalf("derived address %d bytes", len(addr.Bytes()))
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.PubKey().Address().String() != addr.String() {
		t.Fatalf("restored key derives a different address")
	}
}
