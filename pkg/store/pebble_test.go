package store

import (
	"bytes"
	"fmt"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMsgKeysSortBySeq(t *testing.T) {
	// padded sequence numbers must sort bytewise in numeric order
	seqs := []uint64{1, 2, 9, 10, 99, 100, 1000, ^uint64(0)}
	for i := 1; i < len(seqs); i++ {
		a := MsgKey("c1", seqs[i-1])
		b := MsgKey("c1", seqs[i])
		if bytes.Compare(a, b) >= 0 {
			t.Fatalf("key for seq %d does not sort before seq %d", seqs[i-1], seqs[i])
		}
	}
}

func TestIterPrefixOrderAndScope(t *testing.T) {
	s := openTestStore(t)
	// interleave two conversations and a foreign keyspace
	for _, seq := range []uint64{3, 1, 2} {
		if err := s.Set(MsgKey("a", seq), []byte(fmt.Sprintf("a%d", seq)), false); err != nil {
			t.Fatalf("set: %v", err)
		}
		if err := s.Set(MsgKey("b", seq), []byte(fmt.Sprintf("b%d", seq)), false); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if err := s.Set(ConvMetaKey("a"), []byte("meta"), false); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got []string
	err := s.IterPrefix(MsgPrefix("a"), func(k, v []byte) bool {
		got = append(got, string(v))
		return true
	})
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	want := []string{"a1", "a2", "a3"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestIterRangeBounds(t *testing.T) {
	s := openTestStore(t)
	for seq := uint64(1); seq <= 5; seq++ {
		if err := s.Set(MsgKey("c", seq), []byte{byte('0' + seq)}, false); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	var got []string
	// [2, 4) excludes the upper bound
	err := s.IterRange(MsgKey("c", 2), MsgKey("c", 4), func(k, v []byte) bool {
		got = append(got, string(v))
		return true
	})
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	if len(got) != 2 || got[0] != "2" || got[1] != "3" {
		t.Fatalf("range [2,4): got %v", got)
	}
}

func TestBatchRoundTripJSON(t *testing.T) {
	s := openTestStore(t)
	type rec struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	b := s.NewBatch()
	if err := BatchSetJSON(b, []byte("k1"), rec{Name: "x", N: 7}); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := s.ApplyBatch(b, true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	var out rec
	if err := s.GetJSON([]byte("k1"), &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Name != "x" || out.N != 7 {
		t.Fatalf("round trip: %+v", out)
	}
	if _, err := s.Get([]byte("nope")); err != ErrKeyNotFound {
		t.Fatalf("missing key: got %v want ErrKeyNotFound", err)
	}
}

func TestDirectPairKeyOrderInsensitive(t *testing.T) {
	if !bytes.Equal(DirectPairKey("bob", "alice"), DirectPairKey("alice", "bob")) {
		t.Fatal("direct pair key depends on argument order")
	}
}

func TestConvIDFromUserKey(t *testing.T) {
	if got := ConvIDFromUserKey(UserConvKey("u1", "conv-9")); got != "conv-9" {
		t.Fatalf("got %q", got)
	}
	if got := ConvIDFromUserKey([]byte("garbage")); got != "" {
		t.Fatalf("got %q for malformed key", got)
	}
}
