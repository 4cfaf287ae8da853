package stream

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cinderkv/cinderkv/codec"
)

func writeFile(t *testing.T, path string, pairs []Pair) {
	t.Helper()
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, p := range pairs {
		if err := w.WritePair(p); err != nil {
			t.Fatalf("WritePair: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func strPair(k, v string) Pair {
	return Pair{Key: codec.String([]byte(k)), Value: codec.String([]byte(v))}
}

func TestReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment-1.data")
	want := []Pair{strPair("a", "1"), strPair("b", "2"), strPair("c", "3")}
	writeFile(t, path, want)

	for _, chunk := range []int{1, 2, 4096} {
		got, err := Pairs(path, chunk)
		if err != nil {
			t.Fatalf("chunk=%d: Pairs error: %v", chunk, err)
		}
		if len(got) != len(want) {
			t.Fatalf("chunk=%d: got %d pairs, want %d", chunk, len(got), len(want))
		}
		for i := range want {
			if !got[i].Key.Equal(want[i].Key) || !got[i].Value.Equal(want[i].Value) {
				t.Fatalf("chunk=%d: pair %d = %+v, want %+v", chunk, i, got[i], want[i])
			}
		}
	}
}

func TestReaderEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment-1.data")
	writeFile(t, path, nil)

	got, err := Pairs(path, 16)
	if err != nil {
		t.Fatalf("Pairs error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no pairs, got %v", got)
	}
}

func TestReaderIncompleteOddTerm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment-1.data")
	if err := os.WriteFile(path, codec.Encode(codec.String([]byte("orphan-key"))), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Pairs(path, 16)
	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected errors.Is ErrIncomplete, got %v", err)
	}
}

func TestReaderIncompleteTruncatedFrame(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment-1.data")
	full := codec.Encode(codec.String([]byte("truncated-value")))
	if err := os.WriteFile(path, full[:len(full)-2], 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Pairs(path, 16)
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestReaderPropagatesDecodeError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment-1.data")
	if err := os.WriteFile(path, []byte{0xFF}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Pairs(path, 16)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if !errors.Is(err, codec.ErrUnknownTag) {
		t.Fatalf("expected wrapped ErrUnknownTag, got %v", err)
	}
}

func TestMergerInterleaves(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "segment-1.data")
	p2 := filepath.Join(dir, "segment-2.data")
	writeFile(t, p1, []Pair{strPair("a", "old-a"), strPair("c", "old-c"), strPair("e", "old-e")})
	writeFile(t, p2, []Pair{strPair("b", "new-b"), strPair("d", "new-d")})

	m, err := NewMerger(p1, p2, 16)
	if err != nil {
		t.Fatalf("NewMerger: %v", err)
	}
	defer m.Close()

	var keys, values []string
	for {
		p, ok, err := m.Next()
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		if !ok {
			break
		}
		keys = append(keys, string(p.Key.Bytes()))
		values = append(values, string(p.Value.Bytes()))
	}

	wantKeys := []string{"a", "b", "c", "d", "e"}
	wantValues := []string{"old-a", "new-b", "old-c", "new-d", "old-e"}
	if len(keys) != len(wantKeys) {
		t.Fatalf("got keys %v, want %v", keys, wantKeys)
	}
	for i := range wantKeys {
		if keys[i] != wantKeys[i] || values[i] != wantValues[i] {
			t.Fatalf("pair %d = (%s,%s), want (%s,%s)", i, keys[i], values[i], wantKeys[i], wantValues[i])
		}
	}
}

func TestMergerNewerWinsOnTie(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "segment-1.data")
	newer := filepath.Join(dir, "segment-2.data")
	writeFile(t, older, []Pair{strPair("k", "older-value")})
	writeFile(t, newer, []Pair{strPair("k", "newer-value")})

	m, err := NewMerger(older, newer, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	p, ok, err := m.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", p, ok, err)
	}
	if string(p.Value.Bytes()) != "newer-value" {
		t.Fatalf("value = %q, want %q", p.Value.Bytes(), "newer-value")
	}

	_, ok, err = m.Next()
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if ok {
		t.Fatal("expected merge to be exhausted after the tied pair")
	}
}

func TestMergerOneSideEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "segment-1.data")
	full := filepath.Join(dir, "segment-2.data")
	writeFile(t, empty, nil)
	writeFile(t, full, []Pair{strPair("x", "1"), strPair("y", "2")})

	m, err := NewMerger(empty, full, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	var got []string
	for {
		p, ok, err := m.Next()
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(p.Key.Bytes()))
	}
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("got %v, want [x y]", got)
	}
}
