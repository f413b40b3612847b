//go:build !cgo
// +build !cgo

package main

import (
	"sync"
	"testing"
)

func TestHandleTableBasic(t *testing.T) {
	value := "test value"
	h := newHandle(value)
	if h == 0 {
		t.Fatal("expected non-zero handle")
	}

	got := getHandle(h)
	if got != value {
		t.Fatalf("expected %v, got %v", value, got)
	}

	typed, ok := getHandleTyped[string](h)
	if !ok {
		t.Fatal("type assertion failed")
	}
	if typed != value {
		t.Fatalf("expected %v, got %v", value, typed)
	}

	freed := freeHandle(h)
	if freed != value {
		t.Fatalf("expected freed value %v, got %v", value, freed)
	}

	if got := getHandle(h); got != nil {
		t.Fatalf("expected nil after free, got %v", got)
	}
}

func TestHandleTableWrongType(t *testing.T) {
	h := newHandle(42)
	defer freeHandle(h)

	if _, ok := getHandleTyped[string](h); ok {
		t.Fatal("type assertion to wrong type succeeded")
	}
	if v, ok := getHandleTyped[int](h); !ok || v != 42 {
		t.Fatalf("typed retrieval = %v, %v", v, ok)
	}
}

func TestHandleZeroInvalid(t *testing.T) {
	if got := getHandle(0); got != nil {
		t.Fatalf("handle 0 resolved to %v", got)
	}
	if got := freeHandle(0); got != nil {
		t.Fatalf("freeing handle 0 returned %v", got)
	}
}

func TestHandleTableConcurrent(t *testing.T) {
	const perWorker = 100
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v := w*perWorker + i
				h := newHandle(v)
				got, ok := getHandleTyped[int](h)
				if !ok || got != v {
					t.Errorf("handle %d resolved to %v, %v", h, got, ok)
				}
				if freed := freeHandle(h); freed != v {
					t.Errorf("freed %v, want %v", freed, v)
				}
			}
		}(w)
	}
	wg.Wait()
}
