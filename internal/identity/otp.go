package identity

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/example/cartline/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Challenge is the stored OTP state for one phone pair.
type Challenge struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}

// ChallengeStore persists OTP challenges keyed by phone pair. Only one
// challenge can be live per pair; issuing a new one replaces the old.
type ChallengeStore interface {
	Put(ctx context.Context, phone types.Phone, challenge Challenge, ttl time.Duration) error
	Get(ctx context.Context, phone types.Phone) (*Challenge, error)
	Delete(ctx context.Context, phone types.Phone) error
}

type kvStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	OTPKey(countryCode, number string) string
}

type redisChallengeStore struct {
	kv kvStore
}

// NewChallengeStore builds the redis-backed OTP store.
func NewChallengeStore(kv kvStore) (ChallengeStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("kv store is required")
	}
	return &redisChallengeStore{kv: kv}, nil
}

func (s *redisChallengeStore) Put(ctx context.Context, phone types.Phone, challenge Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("encoding challenge: %w", err)
	}
	return s.kv.Set(ctx, s.kv.OTPKey(phone.CountryCode, phone.Number), payload, ttl)
}

func (s *redisChallengeStore) Get(ctx context.Context, phone types.Phone) (*Challenge, error) {
	raw, err := s.kv.Get(ctx, s.kv.OTPKey(phone.CountryCode, phone.Number))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var challenge Challenge
	if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
		return nil, fmt.Errorf("decoding challenge: %w", err)
	}
	return &challenge, nil
}

func (s *redisChallengeStore) Delete(ctx context.Context, phone types.Phone) error {
	return s.kv.Del(ctx, s.kv.OTPKey(phone.CountryCode, phone.Number))
}

// GenerateCode returns a zero-padded numeric code of the given length.
func GenerateCode(digits int) (string, error) {
	if digits <= 0 || digits > 10 {
		return "", fmt.Errorf("invalid otp length %d", digits)
	}
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
