package handle

import "sync/atomic"

// CounterStats is a concrete, concurrency-safe Stats implementation shared
// by every handle in this module. Grounded on the teacher's per-provider
// Config/constructor shape, generalized from "byte provider with no
// counters" to "typed handle with the full per-handle counter set spec'd
// for the coordinator's Statistics component".
type CounterStats struct {
	hits, misses, gets         atomic.Uint64
	adds, puts, removes        atomic.Uint64
	clears, clearRegions       atomic.Uint64
	updateCalls                atomic.Uint64
	items                      atomic.Int64
}

var _ Stats = (*CounterStats)(nil)

func (s *CounterStats) Hits() uint64         { return s.hits.Load() }
func (s *CounterStats) Misses() uint64       { return s.misses.Load() }
func (s *CounterStats) Gets() uint64         { return s.gets.Load() }
func (s *CounterStats) Adds() uint64         { return s.adds.Load() }
func (s *CounterStats) Puts() uint64         { return s.puts.Load() }
func (s *CounterStats) Removes() uint64      { return s.removes.Load() }
func (s *CounterStats) Clears() uint64       { return s.clears.Load() }
func (s *CounterStats) ClearRegions() uint64 { return s.clearRegions.Load() }
func (s *CounterStats) UpdateCalls() uint64  { return s.updateCalls.Load() }
func (s *CounterStats) Items() int64         { return s.items.Load() }

func (s *CounterStats) RecordHit()          { s.hits.Add(1) }
func (s *CounterStats) RecordMiss()         { s.misses.Add(1) }
func (s *CounterStats) RecordGet()          { s.gets.Add(1) }
func (s *CounterStats) RecordAdd()          { s.adds.Add(1) }
func (s *CounterStats) RecordPut()          { s.puts.Add(1) }
func (s *CounterStats) RecordRemove()       { s.removes.Add(1) }
func (s *CounterStats) RecordClear()        { s.clears.Add(1) }
func (s *CounterStats) RecordClearRegion()  { s.clearRegions.Add(1) }
func (s *CounterStats) RecordUpdateCall()   { s.updateCalls.Add(1) }
func (s *CounterStats) AdjustItems(delta int64) { s.items.Add(delta) }
func (s *CounterStats) SetItems(n int64)        { s.items.Store(n) }
