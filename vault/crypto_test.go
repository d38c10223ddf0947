package vault

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSalt_LengthUniq(t *testing.T) {
	t.Parallel()
	a, err := GenerateSalt()
	require.NoError(t, err)
	b, err := GenerateSalt()
	require.NoError(t, err)

	assert.Len(t, a, SaltLen)
	assert.False(t, bytes.Equal(a, b), "two salts must differ")
}

func TestDeriveKey_DeterministicAndInputDependent(t *testing.T) {
	t.Parallel()
	salt := []byte("0123456789abcdef")

	k1, err := DeriveKey([]byte("correct-horse"), salt)
	require.NoError(t, err)
	k2, err := DeriveKey([]byte("correct-horse"), salt)
	require.NoError(t, err)
	assert.Len(t, k1, KeyLen)
	assert.Equal(t, k1, k2)

	other, err := DeriveKey([]byte("correct-horse"), []byte("fedcba9876543210"))
	require.NoError(t, err)
	assert.NotEqual(t, k1, other, "key must change with salt")

	other, err = DeriveKey([]byte("battery-staple"), salt)
	require.NoError(t, err)
	assert.NotEqual(t, k1, other, "key must change with passphrase")
}

func TestDeriveKey_RejectsEmptyInput(t *testing.T) {
	t.Parallel()
	_, err := DeriveKey(nil, []byte("salt"))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = DeriveKey([]byte("pw"), nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func testKey(t *testing.T, fill byte) []byte {
	t.Helper()
	return bytes.Repeat([]byte{fill}, KeyLen)
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	t.Parallel()
	key := testKey(t, 7)
	pt := []byte(`{"entries":[],"notes":[],"trash":[]}`)

	token, err := Encrypt(pt, key)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(token, []byte(Magic)))
	assert.False(t, bytes.Contains(token, pt), "token must not contain plaintext")

	got, err := Decrypt(token, key)
	require.NoError(t, err)
	assert.Equal(t, pt, got)

	again, err := Encrypt(pt, key)
	require.NoError(t, err)
	assert.NotEqual(t, token, again, "each token carries a fresh nonce")
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Parallel()
	token, err := Encrypt([]byte("secret"), testKey(t, 1))
	require.NoError(t, err)

	_, err = Decrypt(token, testKey(t, 2))
	require.ErrorIs(t, err, ErrDecryptionFailure)
}

func TestDecrypt_AnyFlippedByteFails(t *testing.T) {
	t.Parallel()
	key := testKey(t, 3)
	token, err := Encrypt([]byte("top secret payload"), key)
	require.NoError(t, err)

	for i := range token {
		bad := append([]byte(nil), token...)
		bad[i] ^= 0x01
		_, err := Decrypt(bad, key)
		require.ErrorIs(t, err, ErrDecryptionFailure, "byte %d", i)
	}
}

func TestDecrypt_Truncated(t *testing.T) {
	t.Parallel()
	key := testKey(t, 4)
	token, err := Encrypt([]byte("payload"), key)
	require.NoError(t, err)

	for _, n := range []int{0, 3, len(Magic) + 2, 10, len(token) - 1} {
		_, err := Decrypt(token[:n], key)
		require.ErrorIs(t, err, ErrDecryptionFailure, "len %d", n)
	}
}

func TestComputeVerifyMAC(t *testing.T) {
	t.Parallel()
	key := testKey(t, 5)
	ct := []byte("ciphertext bytes")

	mac, err := ComputeMAC(key, ct)
	require.NoError(t, err)
	assert.Len(t, mac, MACLen)
	assert.True(t, VerifyMAC(key, ct, mac))

	assert.False(t, VerifyMAC(testKey(t, 6), ct, mac), "other key")
	assert.False(t, VerifyMAC(key, []byte("ciphertext byteS"), mac), "other data")
	assert.False(t, VerifyMAC(key, ct, mac[:16]), "short mac")
}

func TestMACKeyIsSeparateFromCipherKey(t *testing.T) {
	t.Parallel()
	key := testKey(t, 9)
	ek, err := expandKey(key, cipherInfo)
	require.NoError(t, err)
	mk, err := expandKey(key, macInfo)
	require.NoError(t, err)
	assert.NotEqual(t, ek, mk)
	assert.NotEqual(t, key, ek)
}

func TestAtomicWriteFile_ReplacesContent(t *testing.T) {
	t.Parallel()
	path := t.TempDir() + "/file.bin"

	require.NoError(t, atomicWriteFile(path, []byte("one"), 0600))
	require.NoError(t, atomicWriteFile(path, []byte("two"), 0600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
}
