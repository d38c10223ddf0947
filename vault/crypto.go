package vault

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

var (
	cipherInfo = []byte("lockbox v1 cipher")
	macInfo    = []byte("lockbox v1 mac")
)

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateSalt returns a fresh random salt. A vault gets exactly one, at creation.
func GenerateSalt() ([]byte, error) {
	return randBytes(SaltLen)
}

// DeriveKey stretches the passphrase with PBKDF2-HMAC-SHA256.
func DeriveKey(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", ErrInvalidInput)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: empty salt", ErrInvalidInput)
	}
	return pbkdf2.Key(passphrase, salt, KDFIterations, KeyLen, sha256.New), nil
}

// expandKey derives a purpose-bound subkey so the cipher and the MAC never share a key.
func expandKey(key, info []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("%w: key must be %d bytes", ErrInvalidInput, KeyLen)
	}
	sub := make([]byte, KeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, info), sub); err != nil {
		zero(sub)
		return nil, err
	}
	return sub, nil
}

// Encrypt seals plaintext into a self-describing token:
// magic | version | flags | nonce length | nonce | XChaCha20-Poly1305 ciphertext.
// The header is bound to the ciphertext as associated data.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	ek, err := expandKey(key, cipherInfo)
	if err != nil {
		return nil, err
	}
	defer zero(ek)

	aead, err := chacha20poly1305.NewX(ek)
	if err != nil {
		return nil, err
	}
	nonce, err := randBytes(NonceLen)
	if err != nil {
		return nil, err
	}
	hdr, err := encodeHeader(tokenHeader{Nonce: nonce})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(hdr)+len(plaintext)+aead.Overhead())
	out = append(out, hdr...)
	return aead.Seal(out, nonce, plaintext, hdr), nil
}

// Decrypt opens a token produced by Encrypt. A wrong key and a damaged token
// are reported the same way.
func Decrypt(token, key []byte) ([]byte, error) {
	ek, err := expandKey(key, cipherInfo)
	if err != nil {
		return nil, err
	}
	defer zero(ek)

	h, ct, hdrLen, err := decodeHeader(token)
	if err != nil {
		return nil, ErrDecryptionFailure
	}
	aead, err := chacha20poly1305.NewX(ek)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, h.Nonce, ct, token[:hdrLen])
	if err != nil {
		return nil, ErrDecryptionFailure
	}
	return pt, nil
}

// ComputeMAC returns HMAC-SHA256 over the raw ciphertext bytes.
func ComputeMAC(key, ciphertext []byte) ([]byte, error) {
	mk, err := expandKey(key, macInfo)
	if err != nil {
		return nil, err
	}
	defer zero(mk)

	m := hmac.New(sha256.New, mk)
	m.Write(ciphertext)
	return m.Sum(nil), nil
}

// VerifyMAC recomputes the MAC and compares it in constant time.
func VerifyMAC(key, ciphertext, expected []byte) bool {
	got, err := ComputeMAC(key, ciphertext)
	if err != nil {
		return false
	}
	return hmac.Equal(got, expected)
}

func encodeHeader(h tokenHeader) ([]byte, error) {
	buf := &bytes.Buffer{}

	if _, err := buf.WriteString(Magic); err != nil {
		return nil, err
	}
	if err := buf.WriteByte(Version); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, h.Flags); err != nil {
		return nil, err
	}

	if len(h.Nonce) > 255 {
		return nil, errors.New("nonce too long")
	}
	if err := buf.WriteByte(uint8(len(h.Nonce))); err != nil {
		return nil, err
	}
	if _, err := buf.Write(h.Nonce); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeHeader(raw []byte) (tokenHeader, []byte, int, error) {
	var h tokenHeader
	if len(raw) < len(Magic)+1+2+1 {
		return h, nil, 0, ErrDecryptionFailure
	}

	buf := bytes.NewReader(raw)

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(buf, magic); err != nil {
		return h, nil, 0, err
	}
	if string(magic) != Magic {
		return h, nil, 0, ErrDecryptionFailure
	}

	var version byte
	if err := binary.Read(buf, binary.BigEndian, &version); err != nil {
		return h, nil, 0, err
	}
	if version != Version {
		return h, nil, 0, ErrDecryptionFailure
	}

	if err := binary.Read(buf, binary.BigEndian, &h.Flags); err != nil {
		return h, nil, 0, err
	}

	var nonceLen uint8
	if err := binary.Read(buf, binary.BigEndian, &nonceLen); err != nil {
		return h, nil, 0, err
	}
	if nonceLen != NonceLen {
		return h, nil, 0, ErrDecryptionFailure
	}
	h.Nonce = make([]byte, nonceLen)
	if _, err := io.ReadFull(buf, h.Nonce); err != nil {
		return h, nil, 0, err
	}

	hdrLen := len(raw) - buf.Len()
	return h, raw[hdrLen:], hdrLen, nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".lkbx-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if err := tmpFile.Chmod(perm); err != nil {
		return err
	}
	if _, err := tmpFile.Write(data); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
