// Package vault 提供网关凭据的加密存储。
//
// 密文格式：base64(salt(64B) || nonce(16B) || tag(16B) || ciphertext)，按固定偏移解析。
// 每次加密都重新生成 salt 与 nonce，并用 PBKDF2 从进程级密钥派生 AES-256 密钥。
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize          = 64
	NonceSize         = 16
	TagSize           = 16
	KeySize           = 32
	HashSize          = 64
	MinSecretLength   = 32
	DefaultIterations = 100000
	headerSize        = SaltSize + NonceSize + TagSize
)

var (
	ErrSecretTooShort = errors.New("vault secret too short")
	ErrVaultNotReady  = errors.New("vault secret unavailable")
	ErrEmptyPlaintext = errors.New("vault plaintext is empty")
	ErrDecryption     = errors.New("vault decryption failed")
)

// Vault 凭据加解密器，进程启动时构造一次
type Vault struct {
	secret     []byte
	iterations int
	random     io.Reader
}

// New 创建 Vault；secret 长度不足时返回 ErrSecretTooShort
func New(secret string, iterations int) (*Vault, error) {
	if len(strings.TrimSpace(secret)) < MinSecretLength {
		return nil, fmt.Errorf("%w: minimum %d characters", ErrSecretTooShort, MinSecretLength)
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Vault{
		secret:     []byte(secret),
		iterations: iterations,
		random:     rand.Reader,
	}, nil
}

// Encrypt 加密明文，返回 base64 密文
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", ErrVaultNotReady
	}
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(v.random, salt); err != nil {
		return "", fmt.Errorf("generate salt failed: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(v.random, nonce); err != nil {
		return "", fmt.Errorf("generate nonce failed: %w", err)
	}
	aead, err := v.newAEAD(salt)
	if err != nil {
		return "", err
	}
	// Seal 输出 ciphertext || tag
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	blob := make([]byte, 0, headerSize+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt 解密 base64 密文；格式错误或认证失败返回 ErrDecryption
func (v *Vault) Decrypt(encoded string) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", fmt.Errorf("%w: %v", ErrDecryption, ErrVaultNotReady)
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrDecryption)
	}
	if len(blob) <= headerSize {
		return "", fmt.Errorf("%w: blob too short", ErrDecryption)
	}
	salt := blob[:SaltSize]
	nonce := blob[SaltSize : SaltSize+NonceSize]
	tag := blob[SaltSize+NonceSize : headerSize]
	ciphertext := blob[headerSize:]

	aead, err := v.newAEAD(salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}
	return string(plaintext), nil
}

// Hash 单向哈希，结果为 base64(salt || derived)
func (v *Vault) Hash(value string) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", ErrVaultNotReady
	}
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(v.random, salt); err != nil {
		return "", fmt.Errorf("generate salt failed: %w", err)
	}
	derived := v.deriveHash(value, salt)
	out := make([]byte, 0, SaltSize+HashSize)
	out = append(out, salt...)
	out = append(out, derived...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Compare 常量时间比较明文与哈希
func (v *Vault) Compare(value, hashed string) bool {
	if v == nil || len(v.secret) == 0 {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(hashed))
	if err != nil || len(raw) != SaltSize+HashSize {
		return false
	}
	derived := v.deriveHash(value, raw[:SaltSize])
	return subtle.ConstantTimeCompare(derived, raw[SaltSize:]) == 1
}

func (v *Vault) newAEAD(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.secret, salt, v.iterations, KeySize, sha512.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher failed: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("init gcm failed: %w", err)
	}
	return aead, nil
}

func (v *Vault) deriveHash(value string, salt []byte) []byte {
	password := make([]byte, 0, len(v.secret)+len(value))
	password = append(password, v.secret...)
	password = append(password, value...)
	return pbkdf2.Key(password, salt, v.iterations, HashSize, sha512.New)
}
