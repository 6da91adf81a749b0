package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrInvalidFormat reports a ciphertext token that is empty, not valid
// base64, or not decryptable with the configured key.
var ErrInvalidFormat = errors.New("invalid ciphertext token")

// Codec encrypts and decrypts credential strings with AES-256-CBC.
// Tokens have the form "base64(iv):base64(ciphertext)". The key is the
// SHA-256 digest of the configured secret, so any secret string yields a
// stable 32-byte key.
type Codec struct {
	key []byte
	log *zap.Logger
}

func NewCodec(secretKey string, logger *zap.Logger) *Codec {
	sum := sha256.Sum256([]byte(secretKey))
	return &Codec{
		key: sum[:],
		log: logger,
	}
}

// Encrypt produces an "iv:ciphertext" token with a fresh random IV.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	return base64.StdEncoding.EncodeToString(iv) + ":" +
		base64.StdEncoding.EncodeToString(encrypted), nil
}

// Decrypt reverses Encrypt. A token with no ":" at all is treated as
// legacy plaintext and returned unchanged; stored records written before
// encryption was introduced still contain bare passwords.
func (c *Codec) Decrypt(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}

	if !strings.Contains(token, ":") {
		c.log.Warn("stored credential is plaintext, not an iv:ciphertext token; storing plaintext passwords is insecure")
		return token, nil
	}

	parts := strings.SplitN(token, ":", 2)

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: iv is not valid base64", ErrInvalidFormat)
	}
	encrypted, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not valid base64", ErrInvalidFormat)
	}

	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv must be %d bytes", ErrInvalidFormat, aes.BlockSize)
	}
	if len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length is not a multiple of the block size", ErrInvalidFormat)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	decrypted := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, encrypted)

	unpadded, err := pkcs7Unpad(decrypted, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("bad padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("bad padding byte")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
