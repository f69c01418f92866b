package tempomap

import "testing"

func TestWindow(t *testing.T) {
	tm, err := New(steadyBeats(20, 0, 0.5, 1), 120, "test", 10)
	if err != nil {
		t.Fatal(err)
	}

	w := tm.Window(2.0, 4.0)
	got := w.Collect()
	if len(got) != 5 {
		t.Fatalf("window [2,4] collected %d beats, want 5", len(got))
	}
	if got[0].Time != 2.0 || got[len(got)-1].Time != 4.0 {
		t.Errorf("window bounds = [%g, %g], want [2, 4]", got[0].Time, got[len(got)-1].Time)
	}

	// Exhausted until reset.
	if _, ok := w.Next(); ok {
		t.Error("exhausted window yielded a beat")
	}
	w.Reset()
	if again := w.Collect(); len(again) != 5 {
		t.Errorf("restarted window collected %d beats, want 5", len(again))
	}
}

func TestWindowEmpty(t *testing.T) {
	tm, err := New(steadyBeats(4, 0, 0.5, 1), 120, "test", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := tm.Window(5, 9).Collect(); len(got) != 0 {
		t.Errorf("window past last beat collected %d beats", len(got))
	}
}
