package repository

import (
	"reflect"
	"testing"
)

func TestChunkBounds(t *testing.T) {
	cases := []struct {
		name string
		n    int
		want [][2]int
	}{
		{"empty", 0, nil},
		{"small", 3, [][2]int{{0, 3}}},
		{"exactly one batch", BatchWriteLimit, [][2]int{{0, BatchWriteLimit}}},
		{"one over the limit", BatchWriteLimit + 1, [][2]int{
			{0, BatchWriteLimit},
			{BatchWriteLimit, BatchWriteLimit + 1},
		}},
		{"multiple batches with remainder", 2*BatchWriteLimit + 250, [][2]int{
			{0, BatchWriteLimit},
			{BatchWriteLimit, 2 * BatchWriteLimit},
			{2 * BatchWriteLimit, 2*BatchWriteLimit + 250},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ChunkBounds(tc.n)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ChunkBounds(%d) = %v, want %v", tc.n, got, tc.want)
			}
			for _, b := range got {
				if span := b[1] - b[0]; span < 1 || span > BatchWriteLimit {
					t.Fatalf("chunk %v exceeds batch limit", b)
				}
			}
		})
	}
}
