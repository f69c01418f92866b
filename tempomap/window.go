package tempomap

import "sort"

// Window returns a lazy, restartable view over the beats whose times fall
// in [start, end]. The view indexes into the parent map and allocates no
// beat copies until Collect is called.
func (tm *TempoMap) Window(start, end float64) *BeatWindow {
	// First beat at or after start.
	lo := sort.Search(len(tm.Beats), func(i int) bool {
		return tm.Beats[i].Time >= start
	})
	return &BeatWindow{tm: tm, lo: lo, end: end, next: lo}
}

// BeatWindow iterates beats inside a time window. Next advances, Reset rewinds
// to the start of the window.
type BeatWindow struct {
	tm   *TempoMap
	lo   int
	end  float64
	next int
}

// Next returns the next beat in the window, reporting false once exhausted.
func (w *BeatWindow) Next() (Beat, bool) {
	if w.next >= len(w.tm.Beats) {
		return Beat{}, false
	}
	b := w.tm.Beats[w.next]
	if b.Time > w.end {
		return Beat{}, false
	}
	w.next++
	return b, true
}

// Reset rewinds the iterator so the window can be traversed again.
func (w *BeatWindow) Reset() { w.next = w.lo }

// Collect drains the remaining beats into a slice.
func (w *BeatWindow) Collect() []Beat {
	var out []Beat
	for {
		b, ok := w.Next()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}
