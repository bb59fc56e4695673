package orderindex

import "testing"

func TestPutAndLookup(t *testing.T) {
	t.Parallel()
	idx, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	idx.Put(1, Entry{AccountID: "A", ContractID: "T2303"})

	got, ok := idx.Lookup(1)
	if !ok {
		t.Fatal("Lookup() ok = false, want true")
	}
	if got.AccountID != "A" || got.ContractID != "T2303" {
		t.Errorf("Lookup() = %+v", got)
	}
}

func TestLookupMiss(t *testing.T) {
	t.Parallel()
	idx, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := idx.Lookup(999); ok {
		t.Error("Lookup() on unknown order-id should report ok=false")
	}
}

func TestEvictsOldestWhenFull(t *testing.T) {
	t.Parallel()
	idx, err := New(2)
	if err != nil {
		t.Fatal(err)
	}

	idx.Put(1, Entry{AccountID: "A"})
	idx.Put(2, Entry{AccountID: "B"})
	idx.Put(3, Entry{AccountID: "C"}) // evicts 1, the LRU entry

	if _, ok := idx.Lookup(1); ok {
		t.Error("order 1 should have been evicted")
	}
	if _, ok := idx.Lookup(2); !ok {
		t.Error("order 2 should still be present")
	}
	if _, ok := idx.Lookup(3); !ok {
		t.Error("order 3 should be present")
	}
	if got := idx.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	idx, err := New(4)
	if err != nil {
		t.Fatal(err)
	}
	idx.Put(1, Entry{AccountID: "A"})
	idx.Remove(1)

	if _, ok := idx.Lookup(1); ok {
		t.Error("order 1 should have been removed")
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()
	idx, err := New(4)
	if err != nil {
		t.Fatal(err)
	}
	idx.Put(1, Entry{AccountID: "A"})
	idx.Put(2, Entry{AccountID: "B"})

	snap := idx.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() returned %d entries, want 2", len(snap))
	}
	if snap[1].AccountID != "A" {
		t.Errorf("Snapshot()[1] = %+v", snap[1])
	}
}
