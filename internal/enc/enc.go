// ABOUTME: At-rest encryption for downloaded and transcoded temp files
// ABOUTME: Files carry an RXENC1 header, a 12 byte nonce and ChaCha20-Poly1305 ciphertext
package enc

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// Magic prefixes every encrypted file
var Magic = []byte("RXENC1")

// KeyEnv names the environment variable holding a base64 32 byte key
const KeyEnv = "RESONIX_SECRET_B64"

var (
	ErrTooSmall     = errors.New("encrypted blob too small")
	ErrMissingMagic = errors.New("missing magic header")
)

// Box seals and opens RXENC1 blobs with one key
type Box struct {
	aead cipher.AEAD
}

// NewBox creates a box from a 32 byte key
func NewBox(key []byte) (*Box, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Box{aead: aead}, nil
}

var (
	defaultBox  *Box
	defaultOnce sync.Once
)

// Default returns the process-wide box. The key comes from RESONIX_SECRET_B64
// when it decodes to 32 bytes, otherwise a random key is generated, which
// makes files unreadable after a restart.
func Default() *Box {
	defaultOnce.Do(func() {
		key := keyFromEnv()
		if key == nil {
			key = make([]byte, chacha20poly1305.KeySize)
			if _, err := rand.Read(key); err != nil {
				panic(fmt.Sprintf("enc: failed to generate key: %v", err))
			}
		}
		box, err := NewBox(key)
		if err != nil {
			panic(fmt.Sprintf("enc: %v", err))
		}
		defaultBox = box
	})
	return defaultBox
}

func keyFromEnv() []byte {
	raw := os.Getenv(KeyEnv)
	if raw == "" {
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		log.Printf("Ignoring %s: expected base64 of %d bytes", KeyEnv, chacha20poly1305.KeySize)
		return nil
	}
	return key
}

// Seal encrypts plain into an RXENC1 blob
func (b *Box) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(Magic)+len(nonce)+len(plain)+b.aead.Overhead())
	out = append(out, Magic...)
	out = append(out, nonce...)
	return b.aead.Seal(out, nonce, plain, nil), nil
}

// Open decrypts an RXENC1 blob
func (b *Box) Open(blob []byte) ([]byte, error) {
	if len(blob) < len(Magic)+chacha20poly1305.NonceSize+b.aead.Overhead() {
		return nil, ErrTooSmall
	}
	if !bytes.HasPrefix(blob, Magic) {
		return nil, ErrMissingMagic
	}
	nonce := blob[len(Magic) : len(Magic)+chacha20poly1305.NonceSize]
	ct := blob[len(Magic)+chacha20poly1305.NonceSize:]

	plain, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plain, nil
}

// EncryptFileInPlace replaces a plaintext file with its encrypted form.
// Already encrypted files are left alone.
func (b *Box) EncryptFileInPlace(path string) error {
	if IsEncrypted(path) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plaintext file %s: %w", path, err)
	}

	sealed, err := b.Seal(data)
	if err != nil {
		return err
	}

	swap := fmt.Sprintf("%s.%d.encswap", path, os.Getpid())
	if err := os.WriteFile(swap, sealed, 0o600); err != nil {
		return fmt.Errorf("write encrypted swap file: %w", err)
	}
	if err := os.Rename(swap, path); err != nil {
		os.Remove(swap)
		return fmt.Errorf("replace with encrypted %s: %w", path, err)
	}
	return nil
}

// ReadFile returns the plaintext of path, decrypting when needed
func (b *Box) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	if bytes.HasPrefix(data, Magic) {
		return b.Open(data)
	}
	return data, nil
}

// DecryptToTemp writes the plaintext of an encrypted file to a new temp file
// with the same extension and returns its path. The caller removes it.
func (b *Box) DecryptToTemp(path string) (string, error) {
	plain, err := b.ReadFile(path)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "resonix_dec_*"+filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("create decrypted temp file: %w", err)
	}
	if _, err := f.Write(plain); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write decrypted temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close decrypted temp file: %w", err)
	}
	return f.Name(), nil
}

// IsEncrypted reports whether the file starts with the RXENC1 header
func IsEncrypted(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	hdr := make([]byte, len(Magic))
	if _, err := io.ReadFull(f, hdr); err != nil {
		return false
	}
	return bytes.Equal(hdr, Magic)
}

// EncryptBytes seals plain with the default box
func EncryptBytes(plain []byte) ([]byte, error) { return Default().Seal(plain) }

// DecryptBytes opens blob with the default box
func DecryptBytes(blob []byte) ([]byte, error) { return Default().Open(blob) }

// EncryptFileInPlace encrypts path with the default box
func EncryptFileInPlace(path string) error { return Default().EncryptFileInPlace(path) }

// DecryptToTemp decrypts path with the default box
func DecryptToTemp(path string) (string, error) { return Default().DecryptToTemp(path) }
