// ABOUTME: Password hashers for admin user models: bcrypt and Argon2id
// ABOUTME: MultiHasher verifies either format and hashes new passwords with its primary

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/modeladmin/internal/admin"
)

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("password is required")

// dummyHash keeps sign-in timing constant when the user does not exist.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// BcryptHasher hashes with bcrypt.
type BcryptHasher struct {
	Cost int
}

// Hash implements admin.Hasher.
func (h BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Verify implements admin.Hasher. A mismatch is (false, nil).
func (h BcryptHasher) Verify(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("verifying password: %w", err)
	}
	return true, nil
}

// Argon2Params tunes Argon2id.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2Params returns the parameters used by Argon2Hasher{}.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLen:     16,
		KeyLen:      32,
	}
}

// Argon2Hasher hashes with Argon2id into a PHC-style string:
// argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
type Argon2Hasher struct {
	Params Argon2Params
}

// Hash implements admin.Hasher.
func (h Argon2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	p := h.Params
	if p.KeyLen == 0 {
		p = DefaultArgon2Params()
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLen)
	enc := base64.RawStdEncoding
	return fmt.Sprintf("argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

// Verify implements admin.Hasher.
func (h Argon2Hasher) Verify(hash, password string) (bool, error) {
	p, salt, want, err := parseArgon2(hash)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func parseArgon2(s string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 5 || parts[0] != "argon2id" {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2id hash format")
	}
	ver, err := strconv.Atoi(strings.TrimPrefix(parts[1], "v="))
	if err != nil || ver != argon2.Version {
		return Argon2Params{}, nil, nil, errors.New("unsupported argon2 version")
	}

	var p Argon2Params
	for _, kv := range strings.Split(parts[2], ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return Argon2Params{}, nil, nil, errors.New("invalid argon2 parameters")
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return Argon2Params{}, nil, nil, fmt.Errorf("invalid argon2 parameter %s", key)
		}
		switch key {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return Argon2Params{}, nil, nil, errors.New("invalid argon2 parallelism")
			}
			p.Parallelism = uint8(n)
		default:
			return Argon2Params{}, nil, nil, fmt.Errorf("unknown argon2 parameter %s", key)
		}
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[3])
	if err != nil {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2 salt")
	}
	key, err := enc.DecodeString(parts[4])
	if err != nil || len(key) < 16 {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2 hash")
	}
	return p, salt, key, nil
}

// MultiHasher hashes with Primary and verifies bcrypt or Argon2id hashes by prefix,
// so a deployment can switch algorithms without invalidating stored passwords.
type MultiHasher struct {
	Primary admin.Hasher
}

// DefaultHasher returns a MultiHasher that hashes new passwords with bcrypt.
func DefaultHasher() MultiHasher {
	return MultiHasher{Primary: BcryptHasher{}}
}

// NewHasher returns a MultiHasher whose primary algorithm is "bcrypt" or "argon2id".
func NewHasher(algorithm string) (MultiHasher, error) {
	switch algorithm {
	case "", "bcrypt":
		return MultiHasher{Primary: BcryptHasher{}}, nil
	case "argon2id", "argon2":
		return MultiHasher{Primary: Argon2Hasher{}}, nil
	}
	return MultiHasher{}, fmt.Errorf("unknown password hasher %q", algorithm)
}

// Hash implements admin.Hasher.
func (h MultiHasher) Hash(password string) (string, error) {
	primary := h.Primary
	if primary == nil {
		primary = BcryptHasher{}
	}
	return primary.Hash(password)
}

// Verify implements admin.Hasher.
func (h MultiHasher) Verify(hash, password string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "argon2id$"):
		return Argon2Hasher{}.Verify(hash, password)
	case strings.HasPrefix(hash, "$2"):
		return BcryptHasher{}.Verify(hash, password)
	case hash == "":
		return false, nil
	}
	return false, errors.New("unrecognised password hash format")
}
