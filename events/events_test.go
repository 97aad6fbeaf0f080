package events

import (
	"testing"
	"time"
)

func TestPostDeliversInSubmissionOrder(t *testing.T) {
	b := NewBus(nil)
	var got []int
	b.Subscribe(func(ev any) { got = append(got, ev.(int)) })

	b.Post(1)
	b.Post(2)
	b.Post(3)

	want := []int{1, 2, 3}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

func TestPostAfterOrdersByDeadlineThenSubmission(t *testing.T) {
	base := time.Unix(1000, 0)
	cur := base
	b := NewBus(func() time.Time { return cur })

	var got []string
	b.Subscribe(func(ev any) { got = append(got, ev.(string)) })

	b.PostAfter(5*time.Second, "later-a")
	b.PostAfter(5*time.Second, "later-b")
	b.PostAfter(1*time.Second, "sooner")

	cur = base.Add(10 * time.Second)
	b.PumpDue()

	want := []string{"sooner", "later-a", "later-b"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", got, want)
		}
	}
}

func TestPumpDueOnlyDeliversDueTimers(t *testing.T) {
	base := time.Unix(1000, 0)
	cur := base
	b := NewBus(func() time.Time { return cur })

	var got []string
	b.Subscribe(func(ev any) { got = append(got, ev.(string)) })

	b.PostAfter(10*time.Second, "future")
	b.PumpDue()
	if len(got) != 0 {
		t.Fatalf("expected nothing due yet, got %v", got)
	}

	cur = base.Add(11 * time.Second)
	b.PumpDue()
	if len(got) != 1 || got[0] != "future" {
		t.Fatalf("expected future event delivered, got %v", got)
	}
}
