// Package auth provides API key utilities for the portsweep API server:
// key generation, bcrypt hashing for configuration files, and request-time
// verification against a configured hash.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// API key generation and validation constants
const (
	// APIKeyLength is the length of the random part of an API key
	APIKeyLength = 32
	// APIKeyPrefix is the standard prefix for all API keys
	APIKeyPrefix = "ps"

	// BcryptCost is the bcrypt cost for hashing API keys
	BcryptCost = 12
	// BcryptMaxInputLength is the maximum input length for bcrypt (72 bytes)
	BcryptMaxInputLength = 72

	minAPIKeyLength = 15
	maxAPIKeyLength = 50

	displayRandomChars = 8
)

// GeneratedAPIKey contains a newly generated API key and its storable hash.
type GeneratedAPIKey struct {
	Key       string `json:"key"`        // The actual API key (only shown once)
	Hash      string `json:"hash"`       // bcrypt hash for api.api_key_hash
	KeyPrefix string `json:"key_prefix"` // Display-safe prefix
}

// GenerateAPIKey creates a new random API key together with its hash.
func GenerateAPIKey() (*GeneratedAPIKey, error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	// Use base32 encoding for better readability (no ambiguous characters)
	randomPart := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes))
	if len(randomPart) > APIKeyLength {
		randomPart = randomPart[:APIKeyLength]
	}

	fullKey := fmt.Sprintf("%s_%s", APIKeyPrefix, randomPart)

	hash, err := HashAPIKey(fullKey)
	if err != nil {
		return nil, err
	}

	return &GeneratedAPIKey{
		Key:       fullKey,
		Hash:      hash,
		KeyPrefix: CreateDisplayPrefix(fullKey),
	}, nil
}

// preprocess applies the SHA-256 step used for keys longer than bcrypt accepts.
func preprocess(apiKey string) []byte {
	keyBytes := []byte(apiKey)
	if len(keyBytes) > BcryptMaxInputLength {
		sha256Hash := sha256.Sum256(keyBytes)
		keyBytes = sha256Hash[:]
	}
	return keyBytes
}

// HashAPIKey creates a bcrypt hash of an API key for secure storage
func HashAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(preprocess(apiKey), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return string(hash), nil
}

// ValidateAPIKey checks if a provided API key matches the stored hash
func ValidateAPIKey(apiKey, storedHash string) bool {
	if apiKey == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), preprocess(apiKey)) == nil
}

// IsValidAPIKeyFormat checks if an API key has the correct format
func IsValidAPIKeyFormat(apiKey string) bool {
	if !strings.HasPrefix(apiKey, APIKeyPrefix+"_") {
		return false
	}
	if len(apiKey) < minAPIKeyLength || len(apiKey) > maxAPIKeyLength {
		return false
	}

	for _, char := range apiKey {
		if (char < 'a' || char > 'z') &&
			(char < 'A' || char > 'Z') &&
			(char < '0' || char > '9') &&
			char != '_' {
			return false
		}
	}

	return true
}

// CreateDisplayPrefix creates a safe-to-display prefix from a full API key
func CreateDisplayPrefix(apiKey string) string {
	if !IsValidAPIKeyFormat(apiKey) {
		return "invalid_key"
	}

	prefix, random, _ := strings.Cut(apiKey, "_")
	if len(random) > displayRandomChars {
		random = random[:displayRandomChars]
	}
	return fmt.Sprintf("%s_%s...", prefix, random)
}

// Verifier checks request keys against one configured hash. Keys that have
// already matched are remembered by digest so bcrypt runs once per key.
type Verifier struct {
	hash     string
	mu       sync.RWMutex
	accepted map[[sha256.Size]byte]struct{}
}

// NewVerifier creates a verifier for storedHash. An empty hash accepts nothing.
func NewVerifier(storedHash string) *Verifier {
	return &Verifier{
		hash:     storedHash,
		accepted: make(map[[sha256.Size]byte]struct{}),
	}
}

// Verify reports whether apiKey matches the configured hash.
func (v *Verifier) Verify(apiKey string) bool {
	if apiKey == "" || v.hash == "" {
		return false
	}

	digest := sha256.Sum256([]byte(apiKey))
	v.mu.RLock()
	_, ok := v.accepted[digest]
	v.mu.RUnlock()
	if ok {
		return true
	}

	if !ValidateAPIKey(apiKey, v.hash) {
		return false
	}

	v.mu.Lock()
	v.accepted[digest] = struct{}{}
	v.mu.Unlock()
	return true
}
