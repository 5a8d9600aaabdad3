package credentials

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	HashVersionArgon2id = "argon2id"
	HashVersionBcrypt   = "bcrypt"
)

// Params tunes argon2id. Memory is in KiB.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

var DefaultParams = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, SaltLen: 16, KeyLen: 32}

var errMalformedHash = errors.New("credentials: malformed password hash")

// Hasher produces and checks PHC-formatted argon2id hashes. Legacy bcrypt
// hashes still verify so existing accounts can log in and be upgraded.
type Hasher struct {
	params Params
}

func NewHasher(p Params) *Hasher {
	return &Hasher{params: p}
}

// HashPassword hashes a plaintext password with a fresh random salt.
func (h *Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("credentials: empty password")
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("credentials: read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches hash. Comparison is
// constant-time for both supported formats.
func (h *Hasher) VerifyPassword(hash, password string) (bool, error) {
	switch Version(hash) {
	case HashVersionArgon2id:
		return verifyArgon2id(hash, password)
	case HashVersionBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	default:
		return false, errMalformedHash
	}
}

// NeedsRehash reports whether hash should be replaced by a fresh one
// produced with the current parameters.
func (h *Hasher) NeedsRehash(hash string) bool {
	if Version(hash) != HashVersionArgon2id {
		return true
	}
	p, _, _, err := decodeArgon2id(hash)
	if err != nil {
		return true
	}
	return p.Memory != h.params.Memory ||
		p.Time != h.params.Time ||
		p.Parallelism != h.params.Parallelism ||
		p.KeyLen != h.params.KeyLen
}

// Version identifies the algorithm a stored hash was produced with.
func Version(hash string) string {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return HashVersionArgon2id
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return HashVersionBcrypt
	default:
		return ""
	}
}

func verifyArgon2id(hash, password string) (bool, error) {
	p, salt, key, err := decodeArgon2id(hash)
	if err != nil {
		return false, err
	}

	other := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func decodeArgon2id(hash string) (Params, []byte, []byte, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return Params{}, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, nil, errMalformedHash
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return Params{}, nil, nil, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, errMalformedHash
	}

	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))

	return p, salt, key, nil
}
