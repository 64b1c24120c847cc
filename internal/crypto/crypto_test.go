package crypto

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	a, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, pt := range []string{"hunter2", "", "pässwörd with ütf8 ✓"} {
		enc, err := a.EncryptToString(pt)
		if err != nil {
			t.Fatalf("EncryptToString(%q): %v", pt, err)
		}
		got, err := a.DecryptString(enc)
		if err != nil {
			t.Fatalf("DecryptString: %v", err)
		}
		if got != pt {
			t.Errorf("round trip = %q, want %q", got, pt)
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 32)
	a, _ := New(key)
	e1, _ := a.EncryptToString("same")
	e2, _ := a.EncryptToString("same")
	if e1 == e2 {
		t.Error("two encryptions of the same plaintext produced identical ciphertexts")
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	a1, _ := New(bytes.Repeat([]byte{0x01}, 32))
	a2, _ := New(bytes.Repeat([]byte{0x02}, 32))
	enc, _ := a1.EncryptToString("secret")
	if _, err := a2.DecryptString(enc); err == nil {
		t.Error("decryption with the wrong key should fail")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	a, _ := New(bytes.Repeat([]byte{0x01}, 32))
	for _, in := range []string{"", "AA", "not!!base64"} {
		if _, err := a.DecryptString(in); err == nil {
			t.Errorf("DecryptString(%q) = nil error, want failure", in)
		}
	}
}

func TestNewRejectsBadKeySize(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Error("New with a 5-byte key should fail")
	}
}
