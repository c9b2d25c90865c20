// Package password hashes credentials with argon2id and encodes them as PHC
// strings of the form $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/dtroode/identity-server/internal/model"
)

const algorithm = "argon2id"

const (
	minMemory     uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
)

// ErrMalformedHash is returned by Verify when the stored hash cannot be decoded.
var ErrMalformedHash = errors.New("malformed password hash")

// Params are the argon2id cost parameters used for new hashes.
type Params struct {
	Time        uint32
	Memory      uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams mirror the argon2 defaults of the node ecosystem.
func DefaultParams() Params {
	return Params{Time: 3, Memory: 64 * 1024, Parallelism: 4, SaltLength: 16, KeyLength: 32}
}

// Argon2 implements model.PasswordHasher.
type Argon2 struct {
	params Params
}

var _ model.PasswordHasher = (*Argon2)(nil)

// NewArgon2 validates params and returns a hasher.
func NewArgon2(params Params) (*Argon2, error) {
	switch {
	case params.Time < 1:
		return nil, fmt.Errorf("argon2 time must be >= 1")
	case params.Memory < minMemory:
		return nil, fmt.Errorf("argon2 memory must be >= %d KiB", minMemory)
	case params.Parallelism < 1:
		return nil, fmt.Errorf("argon2 parallelism must be >= 1")
	case params.SaltLength < minSaltLength:
		return nil, fmt.Errorf("argon2 salt length must be >= %d", minSaltLength)
	case params.KeyLength < minKeyLength:
		return nil, fmt.Errorf("argon2 key length must be >= %d", minKeyLength)
	}
	return &Argon2{params: params}, nil
}

// Hash derives a key from password with a fresh random salt.
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version,
		a.params.Memory, a.params.Time, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash. The parameters
// embedded in the hash are used, so hashes made with older costs still verify.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	d, err := decode(encodedHash)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.parallelism, uint32(len(d.key)))

	return subtle.ConstantTimeCompare(key, d.key) == 1, nil
}

type decoded struct {
	time        uint32
	memory      uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decode(encodedHash string) (decoded, error) {
	var d decoded

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithm {
		return d, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return d, fmt.Errorf("%w: unsupported version", ErrMalformedHash)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.memory, &d.time, &d.parallelism); err != nil {
		return d, fmt.Errorf("%w: bad parameters", ErrMalformedHash)
	}
	if d.memory < minMemory || d.time < 1 || d.parallelism < 1 {
		return d, fmt.Errorf("%w: parameters out of range", ErrMalformedHash)
	}

	var err error
	if d.salt, err = decodeSegment(parts[4]); err != nil || len(d.salt) == 0 {
		return d, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if d.key, err = decodeSegment(parts[5]); err != nil || len(d.key) == 0 {
		return d, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}

	return d, nil
}

// decodeSegment accepts both padded and unpadded base64.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
