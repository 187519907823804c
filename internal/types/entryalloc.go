package types

// EntryIdAllocator hands out strictly increasing EntryIds for a single
// bank. It is monotonic per-millisecond-tick and also monotonic across
// ticks that do not advance (e.g. the caller's clock does not move
// forward between two inserts).
type EntryIdAllocator struct {
	lastMillis uint64
	lastSeq    uint32
}

// Next allocates the next EntryId for the given millisecond tick.
func (a *EntryIdAllocator) Next(unixMillis uint64) EntryId {
	if unixMillis < a.lastMillis {
		unixMillis = a.lastMillis
	}
	if unixMillis == a.lastMillis {
		a.lastSeq++
		if a.lastSeq > entrySeqMask {
			// Sequence space for this tick is exhausted; advance the
			// tick artificially so ids keep increasing.
			unixMillis++
			a.lastSeq = 0
		}
	} else {
		a.lastSeq = 0
	}
	a.lastMillis = unixMillis
	return NewEntryId(unixMillis, a.lastSeq)
}

// Observe folds an id produced elsewhere (e.g. loaded from disk) into
// the allocator state so subsequently allocated ids stay strictly
// increasing relative to it.
func (a *EntryIdAllocator) Observe(id EntryId) {
	millis, seq := id.UnixMillis(), id.Seq()
	if millis > a.lastMillis || (millis == a.lastMillis && seq > a.lastSeq) {
		a.lastMillis, a.lastSeq = millis, seq
	}
}
