// Package webpushx implements the message encryption for Web Push
// (RFC 8291) over the aes128gcm content coding (RFC 8188). The gateway uses
// it to decrypt incoming push messages; the sending side is included so the
// scheme can be exercised end to end.
package webpushx

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	authSecretLen = 16
	saltLen       = 16
	pubKeyLen     = 65 // uncompressed P-256 point
	cekLen        = 16
	nonceLen      = 12
	gcmTagLen     = 16

	// single-record messages only, which is all push services deliver
	recordSize = 4096
)

var (
	// ErrTruncated means the message body is too short to hold the
	// aes128gcm header.
	ErrTruncated = errors.New("webpush: message truncated")
	// ErrDecrypt covers authentication failures and malformed records.
	ErrDecrypt = errors.New("webpush: decryption failed")
)

// Keys is the user-agent half of a push subscription: the P-256 key pair and
// the 16-byte authentication secret shared with the application server.
type Keys struct {
	priv *ecdh.PrivateKey
	auth []byte
}

// GenerateKeys creates fresh subscription key material.
func GenerateKeys() (*Keys, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate subscription key: %w", err)
	}
	auth := make([]byte, authSecretLen)
	if _, err := rand.Read(auth); err != nil {
		return nil, fmt.Errorf("generate auth secret: %w", err)
	}
	return &Keys{priv: priv, auth: auth}, nil
}

// LoadKeys reconstructs key material persisted by PrivateKey and AuthSecret.
func LoadKeys(privRaw, auth []byte) (*Keys, error) {
	priv, err := ecdh.P256().NewPrivateKey(privRaw)
	if err != nil {
		return nil, fmt.Errorf("load subscription key: %w", err)
	}
	if len(auth) != authSecretLen {
		return nil, fmt.Errorf("auth secret must be %d bytes, got %d", authSecretLen, len(auth))
	}
	return &Keys{priv: priv, auth: bytes.Clone(auth)}, nil
}

// PublicKey returns the uncompressed public point, the subscription's p256dh
// value.
func (k *Keys) PublicKey() []byte { return k.priv.PublicKey().Bytes() }

// PrivateKey returns the raw private scalar for persistence.
func (k *Keys) PrivateKey() []byte { return k.priv.Bytes() }

// AuthSecret returns the shared authentication secret.
func (k *Keys) AuthSecret() []byte { return bytes.Clone(k.auth) }

// P256dh returns the public key in the base64url form used on the wire.
func (k *Keys) P256dh() string { return EncodeKey(k.PublicKey()) }

// Auth returns the auth secret in the base64url form used on the wire.
func (k *Keys) Auth() string { return EncodeKey(k.auth) }

// EncodeKey encodes key material as unpadded base64url.
func EncodeKey(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// DecodeKey decodes base64url key material, with or without padding.
func DecodeKey(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Encrypt produces an aes128gcm message for the subscription identified by
// the user agent's public key and auth secret. This is the application-server
// side of RFC 8291.
func Encrypt(uaPubRaw, auth, plaintext []byte) ([]byte, error) {
	curve := ecdh.P256()
	uaPub, err := curve.NewPublicKey(uaPubRaw)
	if err != nil {
		return nil, fmt.Errorf("subscription public key: %w", err)
	}
	asPriv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ephemeral key: %w", err)
	}
	shared, err := asPriv.ECDH(uaPub)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}
	asPub := asPriv.PublicKey().Bytes()

	ikm, err := deriveIKM(shared, auth, uaPubRaw, asPub)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}

	// record = plaintext || 0x02 delimiter, then the GCM tag
	if len(plaintext)+1+gcmTagLen > recordSize {
		return nil, fmt.Errorf("plaintext exceeds single record capacity of %d bytes", recordSize-1-gcmTagLen)
	}

	gcm, nonce, err := contentCipher(ikm, salt)
	if err != nil {
		return nil, err
	}
	record := append(bytes.Clone(plaintext), 0x02)
	ciphertext := gcm.Seal(nil, nonce, record, nil)

	header := make([]byte, 0, saltLen+4+1+pubKeyLen)
	header = append(header, salt...)
	header = binary.BigEndian.AppendUint32(header, recordSize)
	header = append(header, byte(len(asPub)))
	header = append(header, asPub...)
	return append(header, ciphertext...), nil
}

// Decrypt opens an aes128gcm message addressed to these subscription keys.
// This is the user-agent side of RFC 8291.
func Decrypt(keys *Keys, body []byte) ([]byte, error) {
	if len(body) < saltLen+4+1 {
		return nil, ErrTruncated
	}
	salt := body[:saltLen]
	idLen := int(body[saltLen+4])
	rest := body[saltLen+4+1:]
	if len(rest) < idLen {
		return nil, ErrTruncated
	}
	asPubRaw := rest[:idLen]
	ciphertext := rest[idLen:]

	asPub, err := ecdh.P256().NewPublicKey(asPubRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %v", ErrDecrypt, err)
	}
	shared, err := keys.priv.ECDH(asPub)
	if err != nil {
		return nil, fmt.Errorf("%w: ecdh: %v", ErrDecrypt, err)
	}
	ikm, err := deriveIKM(shared, keys.auth, keys.PublicKey(), asPubRaw)
	if err != nil {
		return nil, err
	}

	gcm, nonce, err := contentCipher(ikm, salt)
	if err != nil {
		return nil, err
	}
	record, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return stripPadding(record)
}

// stripPadding removes the delimiter and any trailing zero padding from a
// decrypted record. The last (and only) record's delimiter is 0x02.
func stripPadding(record []byte) ([]byte, error) {
	i := len(record) - 1
	for i >= 0 && record[i] == 0x00 {
		i--
	}
	if i < 0 || (record[i] != 0x02 && record[i] != 0x01) {
		return nil, fmt.Errorf("%w: missing record delimiter", ErrDecrypt)
	}
	return record[:i], nil
}

// contentCipher derives the CEK and nonce for a record and returns the
// ready-to-use AEAD.
func contentCipher(ikm, salt []byte) (cipher.AEAD, []byte, error) {
	cek, err := hkdfExpand(ikm, salt, []byte("Content-Encoding: aes128gcm\x00"), cekLen)
	if err != nil {
		return nil, nil, err
	}
	nonce, err := hkdfExpand(ikm, salt, []byte("Content-Encoding: nonce\x00"), nonceLen)
	if err != nil {
		return nil, nil, err
	}
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	return gcm, nonce, nil
}

// deriveIKM combines the ECDH secret with the auth secret and both public
// keys per RFC 8291 section 3.4.
func deriveIKM(ecdhSecret, auth, uaPub, asPub []byte) ([]byte, error) {
	info := make([]byte, 0, 14+len(uaPub)+len(asPub))
	info = append(info, "WebPush: info"...)
	info = append(info, 0x00)
	info = append(info, uaPub...)
	info = append(info, asPub...)
	return hkdfExpand(ecdhSecret, auth, info, 32)
}

func hkdfExpand(secret, salt, info []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}
