package utils

import (
	"context"
	"sync"
	"time"
)

const revokedKeyPrefix = "rollcall:jwt:revoked:"

var (
	revoked   = map[string]time.Time{}
	revokedMu sync.RWMutex
)

// RevokeToken blocks an operator token until its natural expiry. Redis is
// used when configured so every instance sees the revocation.
func RevokeToken(ctx context.Context, token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, revokedKeyPrefix+token, "1", ttl).Err(); err == nil {
			return
		}
		Sugar.Warn("token revocation fell back to memory")
	}
	revokedMu.Lock()
	revoked[token] = expiresAt
	revokedMu.Unlock()
}

// IsTokenRevoked reports whether token was revoked before it expired.
func IsTokenRevoked(ctx context.Context, token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, revokedKeyPrefix+token).Result()
		if err == nil && n > 0 {
			return true
		}
		// fail open on redis errors; the memory map still applies
	}
	revokedMu.RLock()
	exp, ok := revoked[token]
	revokedMu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		revokedMu.Lock()
		delete(revoked, token)
		revokedMu.Unlock()
		return false
	}
	return true
}
