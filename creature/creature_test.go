package creature

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pthm-cable/natsel/protocol"
	"github.com/pthm-cable/natsel/traits"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSpec(energy float64) Spec {
	return Spec{
		ID:         "creature1_0",
		Generation: 1,
		Traits:     traits.Set{Speed: 1, Size: 1, Sense: 0},
		Energy:     energy,
		HomeX:      0,
		HomeY:      15,
	}
}

// next waits for the next message from the creature.
func next(t *testing.T, out <-chan protocol.Inbound) protocol.Message {
	t.Helper()
	select {
	case in := <-out:
		msg, err := protocol.Decode(in.Payload)
		if err != nil {
			t.Fatalf("creature sent undecodable payload %s: %v", in.Payload, err)
		}
		if in.From != "creature1_0" {
			t.Errorf("unexpected sender %q", in.From)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for creature message")
		return nil
	}
}

func waitDone(t *testing.T, c *Creature) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("creature did not exit")
	}
}

func TestCreature_ReportsStatus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan protocol.Inbound, 8)
	sp := NewSpawner(testParams(), 1, quietLogger())
	c, err := sp.Spawn(ctx, testSpec(5), out)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	st, ok := next(t, out).(protocol.Status)
	if !ok {
		t.Fatal("first message should be a status")
	}
	if st.ID != "creature1_0" || st.Speed != 1 || st.Energy >= 5 {
		t.Errorf("unexpected status %+v", st)
	}

	c.Stop()
	c.Stop()
	waitDone(t, c)
	sp.Close()

	if c.Deliver(protocol.MustEncode(protocol.NoTarget{})) {
		t.Error("Deliver to a stopped creature should fail")
	}
}

func TestCreature_GenerationEndSendsFinished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan protocol.Inbound, 8)
	params := testParams()
	params.ReportPeriod = time.Hour
	sp := NewSpawner(params, 1, quietLogger())
	c, _ := sp.Spawn(ctx, testSpec(5), out)

	if !c.Deliver(protocol.MustEncode(protocol.EatConfirm{ID: "creature1_0", EnergyGain: protocol.Gain(1)})) {
		t.Fatal("Deliver should succeed on a running creature")
	}
	c.Deliver(protocol.MustEncode(protocol.GenerationEnd{}))

	fin, ok := next(t, out).(protocol.Finished)
	if !ok {
		t.Fatal("expected finished")
	}
	if fin.FoodsEaten != 1 || fin.Energy != 6 {
		t.Errorf("unexpected finished %+v", fin)
	}
	waitDone(t, c)
	sp.Close()
}

func TestCreature_ExhaustedFinishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan protocol.Inbound, 8)
	sp := NewSpawner(testParams(), 1, quietLogger())
	c, _ := sp.Spawn(ctx, testSpec(0.01), out)

	if _, ok := next(t, out).(protocol.Status); !ok {
		t.Fatal("expected a last status before finishing")
	}
	fin, ok := next(t, out).(protocol.Finished)
	if !ok {
		t.Fatal("expected finished")
	}
	if fin.Energy > 0 {
		t.Errorf("finished with energy %v", fin.Energy)
	}
	waitDone(t, c)
	sp.Close()
}

func TestCreature_IgnoresOtherIDsAndGarbage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan protocol.Inbound, 8)
	params := testParams()
	params.ReportPeriod = time.Hour
	sp := NewSpawner(params, 1, quietLogger())
	c, _ := sp.Spawn(ctx, testSpec(2), out)

	c.Deliver([]byte("not json"))
	c.Deliver(protocol.MustEncode(protocol.EatConfirm{ID: "creature1_9", EnergyGain: protocol.Gain(1)}))
	c.Deliver(protocol.MustEncode(protocol.GenerationEnd{}))

	fin := next(t, out).(protocol.Finished)
	if fin.FoodsEaten != 0 || fin.Energy != 2 {
		t.Errorf("foreign confirm should be ignored, got %+v", fin)
	}
	waitDone(t, c)
	sp.Close()
}

func TestSpawner_ClosedRefusesSpawn(t *testing.T) {
	sp := NewSpawner(testParams(), 1, quietLogger())
	sp.Close()
	if _, err := sp.Spawn(context.Background(), testSpec(1), make(chan protocol.Inbound)); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCreature_ContextCancelExits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan protocol.Inbound) // never read
	sp := NewSpawner(testParams(), 1, quietLogger())
	c, _ := sp.Spawn(ctx, testSpec(5), out)

	time.Sleep(20 * time.Millisecond)
	cancel()
	waitDone(t, c)
	sp.Close()
}

func TestCreature_FinishesBackHomeAfterMeal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan protocol.Inbound, 64)
	sp := NewSpawner(testParams(), 1, quietLogger())
	c, _ := sp.Spawn(ctx, testSpec(5), out)
	defer sp.Close()

	c.Deliver(protocol.MustEncode(protocol.EatConfirm{ID: "creature1_0", EnergyGain: protocol.Gain(1)}))

	var last protocol.Status
	for i := 0; i < 200; i++ {
		switch m := next(t, out).(type) {
		case protocol.Status:
			last = m
		case protocol.Finished:
			if m.FoodsEaten != 1 || m.Energy <= 0 {
				t.Errorf("unexpected finished %+v", m)
			}
			if last.X != 0 || last.Y != 15 {
				t.Errorf("last status at (%v, %v), want home (0, 15)", last.X, last.Y)
			}
			waitDone(t, c)
			return
		}
	}
	t.Fatal("fed creature never finished")
}
