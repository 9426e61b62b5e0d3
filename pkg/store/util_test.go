package store

import (
	"errors"
	"reflect"
	"testing"
)

func TestChunkRangeWindows(t *testing.T) {
	type window struct{ start, end int }

	tests := []struct {
		name      string
		total     int
		chunkSize int
		want      []window
	}{
		{"exact multiple", 6, 3, []window{{0, 3}, {3, 6}}},
		{"partial tail", 7, 3, []window{{0, 3}, {3, 6}, {6, 7}}},
		{"single window", 2, 10, []window{{0, 2}}},
		{"zero chunk size means one window", 4, 0, []window{{0, 4}}},
		{"empty input", 0, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []window
			err := ChunkRange(tt.total, tt.chunkSize, func(start, end int) error {
				got = append(got, window{start, end})
				return nil
			})
			if err != nil {
				t.Fatalf("ChunkRange() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("windows = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChunkRangeStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := ChunkRange(10, 2, func(start, end int) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ChunkRange() error = %v, want %v", err, boom)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDedupeStrings(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"drops duplicates keeping order", []string{"a", "b", "a", "c", "b"}, []string{"a", "b", "c"}},
		{"drops empty values", []string{"", "a", "", "b"}, []string{"a", "b"}},
		{"nil input", nil, nil},
		{"all empty", []string{"", ""}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupeStrings(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DedupeStrings(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
