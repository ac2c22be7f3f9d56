package arena

import "testing"

func TestHeapAndStackGrowTowardEachOther(t *testing.T) {
	a := New(64)

	hp, err := a.AllocHeap(8)
	if err != nil {
		t.Fatalf("AllocHeap: %v", err)
	}
	if hp != 56 {
		t.Fatalf("expected heap ptr 56, got %d", hp)
	}

	sp, err := a.AllocStack(8)
	if err != nil {
		t.Fatalf("AllocStack: %v", err)
	}
	if sp != 1 {
		t.Fatalf("expected stack ptr 1 (offset 0 is reserved as the null sentinel), got %d", sp)
	}
}

func TestCursorsCannotCross(t *testing.T) {
	a := New(16)
	if _, err := a.AllocHeap(10); err != nil {
		t.Fatalf("AllocHeap: %v", err)
	}
	if _, err := a.AllocStack(10); err == nil {
		t.Fatalf("expected out-of-memory error when cursors would cross")
	}
}

func TestPushPopFrameDiscardsAllocations(t *testing.T) {
	a := New(64)
	if _, err := a.AllocStack(8); err != nil {
		t.Fatalf("AllocStack: %v", err)
	}
	mark := a.StackMark()

	a.PushFrame()
	if _, err := a.AllocStack(16); err != nil {
		t.Fatalf("AllocStack: %v", err)
	}
	a.PopFrame()

	if a.StackMark() != mark {
		t.Fatalf("PopFrame did not restore stack cursor: got %d, want %d", a.StackMark(), mark)
	}
}

func TestPopStackRequiresExactLIFO(t *testing.T) {
	a := New(64)
	p1, _ := a.AllocStack(4)
	_, _ = a.AllocStack(4)

	if err := a.PopStack(p1, 4); err == nil {
		t.Fatalf("expected stack underrun error popping out of LIFO order")
	}
}

func TestFreeHeapReclaimsOnlyMostRecent(t *testing.T) {
	a := New(64)
	p1, _ := a.AllocHeap(4)
	before := a.heapTop
	a.FreeHeap(p1, 4)
	if a.heapTop == before {
		t.Fatalf("FreeHeap of most recent block should reclaim space")
	}
}
