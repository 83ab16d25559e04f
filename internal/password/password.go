package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const (
	hashTime    uint32 = 3
	hashMemory  uint32 = 64 * 1024
	hashThreads uint8  = 2
	hashKeyLen  uint32 = 32
	hashSaltLen        = 16
)

var errInvalidDigest = errors.New("invalid password digest")

// Hasher computes and verifies argon2id digests. Argon2 is deliberately
// expensive, so a weighted semaphore caps how many computations run at once;
// callers waiting for a slot are released when their context is cancelled.
type Hasher struct {
	sem *semaphore.Weighted
}

// NewHasher builds a hasher allowing at most maxConcurrent computations.
func NewHasher(maxConcurrent int64) *Hasher {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Hasher{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Hash returns a PHC-formatted argon2id digest with a fresh random salt, so
// two calls with the same password never produce the same output.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemory,
		hashTime,
		hashThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify recomputes the digest with the stored parameters and compares in
// constant time. A wrong password yields (false, nil); a malformed digest
// yields an error.
func (h *Hasher) Verify(ctx context.Context, password, digest string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	salt, expected, mem, timeCost, threads, err := decodeDigest(digest)
	if err != nil {
		return false, err
	}

	actual := argon2.IDKey([]byte(password), salt, timeCost, mem, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

func decodeDigest(digest string) (salt, sum []byte, mem, timeCost uint32, threads uint8, err error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, errInvalidDigest
	}

	version, err := parsePrefixedInt(parts[2], "v=")
	if err != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, errInvalidDigest
	}

	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return nil, nil, 0, 0, 0, errInvalidDigest
	}
	memVal, err := parsePrefixedInt(params[0], "m=")
	if err != nil {
		return nil, nil, 0, 0, 0, errInvalidDigest
	}
	timeVal, err := parsePrefixedInt(params[1], "t=")
	if err != nil {
		return nil, nil, 0, 0, 0, errInvalidDigest
	}
	threadVal, err := parsePrefixedInt(params[2], "p=")
	if err != nil || threadVal > 255 {
		return nil, nil, 0, 0, 0, errInvalidDigest
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, errInvalidDigest
	}
	sum, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, 0, 0, 0, errInvalidDigest
	}

	return salt, sum, uint32(memVal), uint32(timeVal), uint8(threadVal), nil
}

func parsePrefixedInt(value, prefix string) (uint64, error) {
	if !strings.HasPrefix(value, prefix) {
		return 0, errInvalidDigest
	}
	return strconv.ParseUint(strings.TrimPrefix(value, prefix), 10, 32)
}
