package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/landing-leads/internal/leads"
)

const guardKeyPrefix = "landing:leads:dup:"

// DuplicateGuard suppresses repeated posts of the same lead.
type DuplicateGuard interface {
	// Reserve returns true the first time key is seen within the window.
	Reserve(ctx context.Context, key string) (bool, error)
	// Release forgets key so the visitor can try again.
	Release(ctx context.Context, key string) error
}

// RedisGuard implements DuplicateGuard with SET NX and a TTL.
type RedisGuard struct {
	client *redis.Client
	window time.Duration
}

var _ DuplicateGuard = (*RedisGuard)(nil)

// NewRedisGuard returns nil when client is nil or window is not positive.
func NewRedisGuard(client *redis.Client, window time.Duration) *RedisGuard {
	if client == nil || window <= 0 {
		return nil
	}
	return &RedisGuard{client: client, window: window}
}

func (g *RedisGuard) Reserve(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, guardKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), g.window).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, guardKeyPrefix+key).Err()
}

// Fingerprint identifies a lead by name and contact details, ignoring case,
// surrounding whitespace and phone formatting.
func Fingerprint(values leads.FormValues) string {
	v := leads.TrimValues(values)
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.ToLower(v.Name),
		strings.ToLower(v.Email),
		leads.PhoneDigits(v.Phone),
	}, "\x1f")))
	return hex.EncodeToString(sum[:])
}
