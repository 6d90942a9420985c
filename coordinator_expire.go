package coordcache

import (
	"context"
	"fmt"
	"time"
)

// Expire reads key[,region], rewrites its expiration per mode/timeout, and
// writes it back with Put (§4.6). A miss is a no-op, not an error: there is
// nothing to re-expire.
func (c *Coordinator[V]) Expire(ctx context.Context, key, region string, mode ExpirationMode, timeout time.Duration) error {
	if err := c.checkAlive("Expire"); err != nil {
		return err
	}
	if err := validateKey("Expire", key); err != nil {
		return err
	}
	if err := validateRegion("Expire", key, region); err != nil {
		return err
	}
	if (mode == ExpireAbsolute || mode == ExpireSliding) && timeout <= 0 {
		return newErr(KindInvalidArgument, "Expire", key, region, fmt.Errorf("%v expiration requires a strictly positive timeout", mode))
	}

	it, ok, err := c.GetItem(ctx, key, region)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var transformed CacheItem[V]
	switch mode {
	case ExpireAbsolute:
		transformed, err = it.WithAbsoluteExpiration(timeout)
	case ExpireSliding:
		transformed, err = it.WithSlidingExpiration(timeout)
	case ExpireNone:
		transformed = it.WithNoExpiration()
	default:
		transformed = it.WithDefaultExpiration()
	}
	if err != nil {
		return newErr(KindInvalidArgument, "Expire", key, region, err)
	}

	return c.Put(ctx, transformed)
}

// RemoveExpiration clears any expiration on key[,region], making it live
// until explicitly removed or swept by a handle's own capacity policy.
func (c *Coordinator[V]) RemoveExpiration(ctx context.Context, key, region string) error {
	return c.Expire(ctx, key, region, ExpireNone, 0)
}
