package pool

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodePublicInputsLayout(t *testing.T) {
	root := b32(0x11)
	nullifier := b32(0x22)
	recipient := ident("recipient")
	amount := uint64(5_000_000)

	buf := EncodePublicInputs(root, nullifier, recipient, amount)

	if len(buf) != PublicInputsLen {
		t.Fatalf("encoded length = %d, want %d", len(buf), PublicInputsLen)
	}
	if got := binary.BigEndian.Uint32(buf[0:4]); got != PublicInputCount {
		t.Fatalf("public count = %d, want %d", got, PublicInputCount)
	}
	if got := binary.BigEndian.Uint32(buf[4:8]); got != 0 {
		t.Fatalf("secret count = %d, want 0", got)
	}
	if got := binary.BigEndian.Uint32(buf[8:12]); got != PublicInputCount {
		t.Fatalf("vector length = %d, want %d", got, PublicInputCount)
	}
	if !bytes.Equal(buf[12:44], root[:]) {
		t.Fatalf("root not at offset 12")
	}
	if !bytes.Equal(buf[44:76], nullifier[:]) {
		t.Fatalf("nullifier hash not at offset 44")
	}
	if !bytes.Equal(buf[76:108], recipient[:]) {
		t.Fatalf("recipient not at offset 76")
	}
	// Amount is a big-endian uint64 right-aligned in the last field element.
	for i := 108; i < 132; i++ {
		if buf[i] != 0 {
			t.Fatalf("amount element not left-padded with zeros at %d", i)
		}
	}
	if got := binary.BigEndian.Uint64(buf[132:140]); got != amount {
		t.Fatalf("amount = %d, want %d", got, amount)
	}
}

func TestEncodePublicInputsDeterministic(t *testing.T) {
	a := EncodePublicInputs(b32(0x01), b32(0x02), ident("r"), 42)
	b := EncodePublicInputs(b32(0x01), b32(0x02), ident("r"), 42)
	if !bytes.Equal(a, b) {
		t.Fatalf("same inputs produced different encodings")
	}
	c := EncodePublicInputs(b32(0x01), b32(0x02), ident("r"), 43)
	if bytes.Equal(a, c) {
		t.Fatalf("different amounts produced identical encodings")
	}
}
