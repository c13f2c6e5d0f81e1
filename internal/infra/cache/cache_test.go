package cache

import (
	"sync"
	"testing"
)

func TestStore_SetOnceThenGet(t *testing.T) {
	s := New[[]string]()

	if _, ok := s.Get("movie"); ok {
		t.Fatalf("期望未填充，但 ok=true")
	}

	got, stored := s.SetOnce("movie", []string{"Action"})
	if !stored {
		t.Fatalf("期望首次写入生效，但 stored=false")
	}
	if len(got) != 1 || got[0] != "Action" {
		t.Fatalf("返回值不一致：%v", got)
	}

	v, ok := s.Get(" MOVIE ")
	if !ok {
		t.Fatalf("期望命中缓存，但 ok=false")
	}
	if len(v) != 1 || v[0] != "Action" {
		t.Fatalf("内容不一致：%v", v)
	}
}

func TestStore_SecondWriteIgnored(t *testing.T) {
	s := New[int]()
	s.SetOnce("tv", 1)

	cur, stored := s.SetOnce("tv", 2)
	if stored {
		t.Fatalf("期望第二次写入被丢弃，但 stored=true")
	}
	if cur != 1 {
		t.Fatalf("期望保留首次写入的值 1，实际=%d", cur)
	}
	if v, _ := s.Get("tv"); v != 1 {
		t.Fatalf("期望 Get 返回 1，实际=%d", v)
	}
	if s.Len() != 1 {
		t.Fatalf("期望 Len=1，实际=%d", s.Len())
	}
}

func TestStore_ConcurrentSetOnce(t *testing.T) {
	s := New[int]()

	var wg sync.WaitGroup
	var mu sync.Mutex
	storedCount := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			if _, stored := s.SetOnce("movie", v); stored {
				mu.Lock()
				storedCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if storedCount != 1 {
		t.Fatalf("期望恰好 1 次写入生效，实际 %d", storedCount)
	}
}
