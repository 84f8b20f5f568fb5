// Package encription implements the optional at-rest codec for the pending
// mutation queue. Sheets carry signatures and photo evidence, so the queue
// snapshot on disk can hold sensitive payloads; when a passphrase is
// configured, the durable store passes every snapshot through Seal/Open.
package encription

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

// The salt is fixed: the codec protects a single local file, there is no
// password database to rainbow-table against.
var keySalt = []byte("loadsheet.queue.v1")

const nonceSize = 16

type Enc struct {
	key []byte
}

// NewEnc derives the AES key from the passphrase with scrypt.
func NewEnc(passphrase string) (*Enc, error) {
	key, err := scrypt.Key([]byte(passphrase), keySalt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, err
	}
	return &Enc{key: key}, nil
}

// Seal encrypts the plaintext with AES-CTR under a fresh random nonce and
// returns nonce||ciphertext.
func (e *Enc) Seal(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, nonceSize+len(plain))
	nonce := sealed[:nonceSize]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	stream := cipher.NewCTR(block, nonce)
	stream.XORKeyStream(sealed[nonceSize:], plain)

	return sealed, nil
}

// Open decrypts a value produced by Seal.
func (e *Enc) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, errors.New("sealed data too short")
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}

	plain := make([]byte, len(sealed)-nonceSize)
	stream := cipher.NewCTR(block, sealed[:nonceSize])
	stream.XORKeyStream(plain, sealed[nonceSize:])

	return plain, nil
}

// GetHash returns the hex SHA-256 of the data. Used for photo evidence
// deduplication in record payloads.
func (e *Enc) GetHash(data []byte) string {
	hasher := sha256.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}
