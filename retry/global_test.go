package retry

import "testing"

func TestDefaultExecutor_IsShared(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	a := DefaultExecutor()
	b := DefaultExecutor()
	if a == nil || a != b {
		t.Fatalf("expected a single shared executor, got %p and %p", a, b)
	}
}

func TestSetGlobal(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	custom := NewExecutor()
	SetGlobal(nil)
	SetGlobal(custom)
	if DefaultExecutor() != custom {
		t.Fatal("expected SetGlobal to install the executor")
	}

	SetGlobal(NewExecutor())
	if DefaultExecutor() != custom {
		t.Fatal("expected later SetGlobal calls to be ignored")
	}
}
