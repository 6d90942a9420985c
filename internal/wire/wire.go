// Package wire implements the binary envelope byte-oriented handles use to
// frame an item's expiration metadata alongside its encoded value. Grounded
// on the teacher's internal/wire (magic+version+kind header, big-endian
// length-prefixed fields), generalized from "generation + payload" to
// "expiration mode/timeout/createdUTC + payload", since byte-store handles
// (Ristretto, BigCache, Redis) need to recover staleness without decoding
// the value itself.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1
	kind    byte = 1
)

var (
	ErrCorrupt = errors.New("coordcache: corrupt entry")
	magic4     = [...]byte{'C', 'O', 'R', 'D'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Envelope carries everything a byte-oriented handle needs to reconstruct
// a CacheItem's staleness without decoding Payload. HandleEpoch and
// RegionEpoch are the epochs observed at write time; a handle's Clear and
// ClearRegion bump the corresponding epoch in its GenStore so every
// previously-written envelope self-heals as stale on its next read,
// without the handle needing to enumerate or physically touch every key.
//
// Layout: magic(4) | ver(1) | kind(1) | mode(1) | timeout(i64 be ns) |
//
//	createdUTC(i64 be unix-nano) | lastAccessedUTC(i64 be unix-nano) |
//	version(u64 be) | handleEpoch(u64 be) | regionEpoch(u64 be) |
//	vlen(u32 be) | payload(vlen)
type Envelope struct {
	Mode            byte // item.ExpirationMode, stored as a raw byte to avoid an import cycle
	Timeout         time.Duration
	CreatedUTC      time.Time
	LastAccessedUTC time.Time
	Version         uint64
	HandleEpoch     uint64
	RegionEpoch     uint64
	Payload         []byte
}

func Encode(e Envelope) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 8 + 8 + 8 + 8 + 8 + 8 + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kind)
	buf.WriteByte(e.Mode)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.Timeout))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.CreatedUTC.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.LastAccessedUTC.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], e.Version)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], e.HandleEpoch)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], e.RegionEpoch)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

func Decode(b []byte) (Envelope, error) {
	const hdr = 4 + 1 + 1 + 1 + 8 + 8 + 8 + 8 + 8 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kind {
		return Envelope{}, ErrCorrupt
	}

	off := 6
	mode := b[off]
	off++

	timeout := time.Duration(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	created := time.Unix(0, int64(binary.BigEndian.Uint64(b[off:off+8])))
	off += 8

	lastAccessed := time.Unix(0, int64(binary.BigEndian.Uint64(b[off:off+8])))
	off += 8

	ver := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	handleEpoch := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	regionEpoch := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	if off+4 > len(b) {
		return Envelope{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off {
		return Envelope{}, ErrCorrupt
	}

	return Envelope{
		Mode:            mode,
		Timeout:         timeout,
		CreatedUTC:      created,
		LastAccessedUTC: lastAccessed,
		Version:         ver,
		HandleEpoch:     handleEpoch,
		RegionEpoch:     regionEpoch,
		Payload:         b[off : off+vlen],
	}, nil
}
