// Package util provides key-composition helpers shared by the byte-oriented
// handles, grounded on the teacher's internal/util.BulkKey (sorted-key
// composite hashing), generalized from "bulk cache key" to "namespaced,
// region-qualified single-item storage key".
package util

import "strings"

// StorageKey composes a byte-store key for (namespace, region, key). Region
// isolation (spec §3/§8) requires (key, region) to be the true identity;
// region "" is the global namespace and never collides with a regioned key
// of the same name because the region segment is always present in the
// encoded key, even when empty.
func StorageKey(ns, region, key string) string {
	var b strings.Builder
	b.Grow(len(ns) + len(region) + len(key) + 3)
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(region)
	b.WriteByte(':')
	b.WriteString(key)
	return b.String()
}

// RegionPrefix returns the prefix shared by every key in ns/region, for
// handles that support prefix scans/deletes (e.g. ClearRegion).
func RegionPrefix(ns, region string) string {
	var b strings.Builder
	b.Grow(len(ns) + len(region) + 2)
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(region)
	b.WriteByte(':')
	return b.String()
}
