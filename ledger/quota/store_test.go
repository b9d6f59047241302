package quota

import (
	"bytes"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
)

type memoryState struct {
	data map[string][]byte
}

func newMemoryState() *memoryState {
	return &memoryState{data: make(map[string][]byte)}
}

func (m *memoryState) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok := m.data[string(key)]
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memoryState) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *memoryState) KVDelete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

func TestBucket(t *testing.T) {
	daySeconds := int64(BucketLength / time.Second)
	cases := []struct {
		ts   int64
		want uint64
	}{
		{0, 0},
		{daySeconds - 1, 0},
		{daySeconds, 1},
		{daySeconds*2 + 1, 2},
		{-5, 0},
	}
	for _, tc := range cases {
		if got := Bucket(tc.ts); got != tc.want {
			t.Fatalf("Bucket(%d) = %d, want %d", tc.ts, got, tc.want)
		}
	}
}

func TestStoreCountersAreIndependentPerBucket(t *testing.T) {
	store := NewStore(newMemoryState())
	addr := bytes.Repeat([]byte{0xAA}, 20)

	count, err := store.Count(10, addr)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("fresh counter must read 0, got %d", count)
	}

	for i := uint32(1); i <= 3; i++ {
		got, err := store.Increment(10, addr)
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if got != i {
			t.Fatalf("increment returned %d, want %d", got, i)
		}
	}

	// A different bucket for the same identity starts at zero.
	if count, _ = store.Count(11, addr); count != 0 {
		t.Fatalf("next bucket must start at 0, got %d", count)
	}
	// A different identity in the same bucket starts at zero.
	other := bytes.Repeat([]byte{0xBB}, 20)
	if count, _ = store.Count(10, other); count != 0 {
		t.Fatalf("other identity must start at 0, got %d", count)
	}
}

func TestStoreDecrementFloorsAtZero(t *testing.T) {
	store := NewStore(newMemoryState())
	addr := bytes.Repeat([]byte{0x01}, 20)

	if err := store.Decrement(3, addr); err != nil {
		t.Fatalf("decrement on empty counter: %v", err)
	}
	if count, _ := store.Count(3, addr); count != 0 {
		t.Fatalf("counter must stay at 0, got %d", count)
	}

	if _, err := store.Increment(3, addr); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.Decrement(3, addr); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if count, _ := store.Count(3, addr); count != 0 {
		t.Fatalf("decrement must undo the increment, got %d", count)
	}
}

func TestStorePrune(t *testing.T) {
	state := newMemoryState()
	store := NewStore(state)
	addr := bytes.Repeat([]byte{0x02}, 20)

	if _, err := store.Increment(7, addr); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.Prune(7, addr); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(state.data) != 0 {
		t.Fatalf("prune must remove the stored counter, %d keys remain", len(state.data))
	}
}

func TestStoreRequiresState(t *testing.T) {
	var store *Store
	if _, err := store.Count(0, []byte{0x01}); err == nil {
		t.Fatalf("nil store must error")
	}
	store = NewStore(nil)
	if _, err := store.Increment(0, []byte{0x01}); err == nil {
		t.Fatalf("store without state must error")
	}
	store = NewStore(newMemoryState())
	if _, err := store.Count(0, nil); err == nil {
		t.Fatalf("empty address must error")
	}
}
