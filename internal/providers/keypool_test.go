package providers

import "testing"

// TestNewKeyPool_Empty verifies that constructing a pool with no keys fails fast.
func TestNewKeyPool_Empty(t *testing.T) {
	if _, err := NewKeyPool(nil); err != ErrEmptyKeyPool {
		t.Fatalf("expected ErrEmptyKeyPool, got: %v", err)
	}
}

// TestKeyPool_RotationIsCircular verifies that N+1 rotations on a pool of size N
// return to the original key.
func TestKeyPool_RotationIsCircular(t *testing.T) {
	keys := []string{"key-a", "key-b", "key-c"}
	pool, err := NewKeyPool(keys)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	first := pool.Current()
	if first != "key-a" {
		t.Fatalf("expected initial key key-a, got %q", first)
	}

	for i := 0; i < len(keys); i++ {
		pool.Rotate()
	}
	if got := pool.Current(); got != first {
		t.Fatalf("after %d rotations expected %q, got %q", len(keys), first, got)
	}
}

// TestKeyPool_SingleKey verifies that a pool of size 1 rotates onto itself.
func TestKeyPool_SingleKey(t *testing.T) {
	pool, err := NewKeyPool([]string{"only"})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	if got := pool.Rotate(); got != "only" {
		t.Fatalf("expected rotation to return the only key, got %q", got)
	}
}

// TestKeyPool_CopiesInput verifies the pool is not affected by mutation of the
// caller's slice after construction.
func TestKeyPool_CopiesInput(t *testing.T) {
	keys := []string{"a", "b"}
	pool, _ := NewKeyPool(keys)
	keys[0] = "mutated"
	if got := pool.Current(); got != "a" {
		t.Fatalf("expected pool to copy keys, got %q", got)
	}
}
