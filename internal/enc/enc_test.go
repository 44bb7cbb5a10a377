// ABOUTME: Tests for at-rest encryption
// ABOUTME: Verifies sealing, file round trips and header detection
package enc

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testBox(t *testing.T) *Box {
	t.Helper()
	box, err := NewBox(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewBox failed: %v", err)
	}
	return box
}

func TestSealOpen(t *testing.T) {
	box := testBox(t)
	plain := []byte("forty-eight thousand samples per second")

	sealed, err := box.Seal(plain)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if !bytes.HasPrefix(sealed, Magic) {
		t.Error("sealed blob missing magic header")
	}
	if len(sealed) != len(Magic)+12+len(plain)+16 {
		t.Errorf("unexpected blob length %d", len(sealed))
	}

	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Errorf("expected %q, got %q", plain, opened)
	}
}

func TestOpenRejects(t *testing.T) {
	box := testBox(t)
	sealed, _ := box.Seal([]byte("payload"))

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff

	noMagic := append([]byte("XXXXXX"), sealed[len(Magic):]...)

	tests := []struct {
		name string
		blob []byte
		want error
	}{
		{"too small", []byte("RXENC1"), ErrTooSmall},
		{"missing magic", noMagic, ErrMissingMagic},
		{"tampered", tampered, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := box.Open(tt.blob)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEncryptFileInPlace(t *testing.T) {
	box := testBox(t)
	path := filepath.Join(t.TempDir(), "track.mp3")
	plain := []byte("ID3 not really an mp3")
	if err := os.WriteFile(path, plain, 0o644); err != nil {
		t.Fatal(err)
	}

	if IsEncrypted(path) {
		t.Fatal("plaintext file reported as encrypted")
	}
	if err := box.EncryptFileInPlace(path); err != nil {
		t.Fatalf("EncryptFileInPlace failed: %v", err)
	}
	if !IsEncrypted(path) {
		t.Fatal("expected file to be encrypted")
	}

	first, _ := os.ReadFile(path)
	if err := box.EncryptFileInPlace(path); err != nil {
		t.Fatalf("second EncryptFileInPlace failed: %v", err)
	}
	second, _ := os.ReadFile(path)
	if !bytes.Equal(first, second) {
		t.Error("encrypting twice should leave the file unchanged")
	}

	got, err := box.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("expected %q, got %q", plain, got)
	}
}

func TestDecryptToTemp(t *testing.T) {
	box := testBox(t)
	path := filepath.Join(t.TempDir(), "track.flac")
	plain := []byte("fLaC payload")
	os.WriteFile(path, plain, 0o644)
	if err := box.EncryptFileInPlace(path); err != nil {
		t.Fatal(err)
	}

	tmp, err := box.DecryptToTemp(path)
	if err != nil {
		t.Fatalf("DecryptToTemp failed: %v", err)
	}
	defer os.Remove(tmp)

	if filepath.Ext(tmp) != ".flac" {
		t.Errorf("expected .flac extension, got %s", tmp)
	}
	got, _ := os.ReadFile(tmp)
	if !bytes.Equal(got, plain) {
		t.Errorf("expected %q, got %q", plain, got)
	}
}

func TestIsEncryptedMissingFile(t *testing.T) {
	if IsEncrypted(filepath.Join(t.TempDir(), "nope")) {
		t.Error("missing file should not be reported as encrypted")
	}
}

func TestDefaultBoxRoundTrip(t *testing.T) {
	sealed, err := EncryptBytes([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := DecryptBytes(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != "x" {
		t.Errorf("expected x, got %q", plain)
	}
}
