package coordcache

import (
	"time"

	"github.com/coordcache/coordcache/item"
)

// CacheItem, ExpirationMode and friends are re-exported from the leaf item
// package so callers can write coordcache.CacheItem[User] without an extra
// import, mirroring the teacher's Cache[V] = CAS[V] alias pattern.
type CacheItem[V any] = item.CacheItem[V]

type ExpirationMode = item.ExpirationMode

const (
	ExpireNone     = item.ExpireNone
	ExpireDefault  = item.ExpireDefault
	ExpireAbsolute = item.ExpireAbsolute
	ExpireSliding  = item.ExpireSliding
)

// NewItem builds a CacheItem with explicit (non-default) expiration.
func NewItem[V any](key, region string, value V, mode ExpirationMode, timeout time.Duration) (CacheItem[V], error) {
	it, err := item.New(key, region, value, mode, timeout)
	if err != nil {
		return it, newErr(KindInvalidArgument, "NewItem", key, region, err)
	}
	return it, nil
}

// NewDefaultItem builds a CacheItem whose expiration is decided by the
// receiving handle's defaults at store time.
func NewDefaultItem[V any](key, region string, value V) (CacheItem[V], error) {
	it, err := item.NewDefault(key, region, value)
	if err != nil {
		return it, newErr(KindInvalidArgument, "NewDefaultItem", key, region, err)
	}
	return it, nil
}
