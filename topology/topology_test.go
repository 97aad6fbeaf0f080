package topology

import (
	"context"
	"testing"
)

func TestStaticResolverDefaultsToHostFacing(t *testing.T) {
	r := NewStaticResolver()
	internal, err := r.IsInternal(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("IsInternal: %v", err)
	}
	if internal {
		t.Fatalf("expected unknown port to default to non-internal")
	}
}

func TestStaticResolverSetAndGet(t *testing.T) {
	r := NewStaticResolver()
	r.Set(1, 5, true)
	r.Set(1, 6, false)

	internal, err := r.IsInternal(context.Background(), 1, 5)
	if err != nil || !internal {
		t.Fatalf("expected port 5 internal, got %v err %v", internal, err)
	}
	internal, err = r.IsInternal(context.Background(), 1, 6)
	if err != nil || internal {
		t.Fatalf("expected port 6 non-internal, got %v err %v", internal, err)
	}
}
