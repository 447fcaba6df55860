package cache

import (
	"errors"
	"sync"
	"testing"
)

func TestCacheGetSet(t *testing.T) {
	c := New[string, int](0)
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get on empty cache reported a hit")
	}
	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v, want 1, true", v, ok)
	}
	c.Set("a", 3)
	if v, _ := c.Get("a"); v != 3 {
		t.Errorf("Get(a) after overwrite = %d, want 3", v)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := NewWithEvict(2, func(k string, _ int) { evicted = append(evicted, k) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b is now the oldest
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	if c.Len() != 2 || c.Capacity() != 2 {
		t.Errorf("Len() = %d, Capacity() = %d, want 2, 2", c.Len(), c.Capacity())
	}
}

func TestCacheEvictCallback(t *testing.T) {
	released := map[string]int{}
	c := NewWithEvict(0, func(k string, v int) { released[k] = v })

	c.Set("a", 1)
	c.Set("a", 2) // replaced value is released
	c.Set("b", 3)
	if !c.Delete("b") {
		t.Error("Delete(b) = false")
	}
	if c.Delete("b") {
		t.Error("second Delete(b) = true")
	}
	c.Clear()

	want := map[string]int{"a": 2, "b": 3}
	// "a" was released twice: first with 1, then with 2 on Clear.
	if len(released) != len(want) || released["a"] != want["a"] || released["b"] != want["b"] {
		t.Errorf("released = %v, want %v", released, want)
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestCacheGetOrCreate(t *testing.T) {
	c := New[int, string](4)
	calls := 0
	create := func() (string, error) {
		calls++
		return "v", nil
	}

	for range 3 {
		v, err := c.GetOrCreate(1, create)
		if err != nil || v != "v" {
			t.Fatalf("GetOrCreate = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrCreate(2, func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("GetOrCreate error = %v, want boom", err)
	}
	if _, ok := c.Get(2); ok {
		t.Error("failed create was cached")
	}
}

func TestCacheConcurrent(t *testing.T) {
	c := New[int, int](64)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				k := (g*200 + i) % 100
				c.Set(k, i)
				c.Get(k)
				_, _ = c.GetOrCreate(k+1000, func() (int, error) { return k, nil })
			}
		}()
	}
	wg.Wait()
	if c.Len() > 64 {
		t.Errorf("Len() = %d, exceeds limit 64", c.Len())
	}
}
