package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gorm.io/gorm"
)

// Reference prefixes used across the gateway
const (
	PaymentReferencePrefix   = "RC"
	RefundReferencePrefix    = "RF"
	RemissionReferencePrefix = "RM"
)

// referenceSequence is the shared counter behind every generated reference.
// A single sequence keeps references unique across prefixes.
const referenceSequence = "payment_reference_seq"

// maxReferencePayload is the largest counter value the 11-digit payload can
// encode. Crossing it is fatal: the operator has to widen the scheme.
const maxReferencePayload uint64 = 99_999_999_999

// ErrSequenceExhausted is returned when the reference counter has overflowed
// its 11-digit payload width. Never retried.
var ErrSequenceExhausted = errors.New("reference sequence exhausted its payload width")

var referencePattern = regexp.MustCompile(`^[A-Z]{2,3}-\d{4}-\d{4}-\d{3}[\dX]$`)

// SequenceAllocator hands out strictly increasing counter values. Concurrent
// callers must never observe the same value, so every implementation is an
// atomic read-modify-write: a database sequence, a Redis INCR, or an
// in-process atomic counter for tests.
type SequenceAllocator interface {
	Next(ctx context.Context, name string) (uint64, error)
}

// GormSequenceAllocator allocates from a postgres sequence. This is the
// production allocator: sequence values survive restarts.
type GormSequenceAllocator struct {
	db *gorm.DB
}

func NewGormSequenceAllocator(db *gorm.DB) *GormSequenceAllocator {
	return &GormSequenceAllocator{db: db}
}

func (a *GormSequenceAllocator) Next(ctx context.Context, name string) (uint64, error) {
	var value uint64
	if err := a.db.WithContext(ctx).Raw("SELECT nextval(?)", name).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	return value, nil
}

// RedisSequenceAllocator allocates with Redis INCR. Only suitable when the
// Redis instance is persistent; a flushed counter would repeat payloads.
type RedisSequenceAllocator struct {
	cache *RedisCache
}

func NewRedisSequenceAllocator(cache *RedisCache) *RedisSequenceAllocator {
	return &RedisSequenceAllocator{cache: cache}
}

func (a *RedisSequenceAllocator) Next(ctx context.Context, name string) (uint64, error) {
	value, err := a.cache.Increment(ctx, "sequence:"+name)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	return uint64(value), nil
}

// MemorySequenceAllocator is the in-process substitute used by unit tests.
type MemorySequenceAllocator struct {
	mu       sync.Mutex
	counters map[string]uint64
}

func NewMemorySequenceAllocator() *MemorySequenceAllocator {
	return &MemorySequenceAllocator{counters: make(map[string]uint64)}
}

func (a *MemorySequenceAllocator) Next(ctx context.Context, name string) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[name]++
	return a.counters[name], nil
}

// Seed positions a counter so the next allocation returns value+1.
func (a *MemorySequenceAllocator) Seed(name string, value uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[name] = value
}

// ReferenceService produces globally unique, human-verifiable references of
// the shape PPP-NNNN-NNNN-NNNC: an 11-digit counter payload split into
// groups of four plus a trailing modulus-11 check character.
type ReferenceService struct {
	sequences SequenceAllocator
}

func NewReferenceService(sequences SequenceAllocator) *ReferenceService {
	return &ReferenceService{sequences: sequences}
}

// NextReference allocates the next reference for the given prefix.
func (s *ReferenceService) NextReference(ctx context.Context, prefix string) (string, error) {
	value, err := s.sequences.Next(ctx, referenceSequence)
	if err != nil {
		return "", err
	}
	if value > maxReferencePayload {
		return "", ErrSequenceExhausted
	}

	payload := fmt.Sprintf("%011d", value)
	check, err := mod11CheckCharacter(payload)
	if err != nil {
		return "", err
	}

	raw := payload + string(check)
	return fmt.Sprintf("%s-%s-%s-%s", prefix, raw[0:4], raw[4:8], raw[8:12]), nil
}

// ValidateReference reports whether ref has the expected shape and a check
// character matching its payload. It rejects any single-digit alteration
// and any adjacent transposition of the payload.
func ValidateReference(ref string) bool {
	if !referencePattern.MatchString(ref) {
		return false
	}

	body := strings.ReplaceAll(ref[strings.IndexByte(ref, '-')+1:], "-", "")
	check, err := mod11CheckCharacter(body[:11])
	if err != nil {
		return false
	}
	return check == body[11]
}

// mod11CheckCharacter computes a modulus-11 check character over a numeric
// payload, weighting digits 2..7 cyclically from the least significant
// position. Every weight is invertible mod 11, so any single-digit change
// and any adjacent transposition shifts the remainder.
func mod11CheckCharacter(payload string) (byte, error) {
	sum := 0
	weight := 2
	for i := len(payload) - 1; i >= 0; i-- {
		d := payload[i]
		if d < '0' || d > '9' {
			return 0, fmt.Errorf("reference payload contains non-digit %q", d)
		}
		sum += int(d-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}

	switch r := 11 - sum%11; r {
	case 11:
		return '0', nil
	case 10:
		return 'X', nil
	default:
		return byte('0' + r), nil
	}
}
