package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestNewSnowflakeWorkerRange(t *testing.T) {
	if _, err := NewSnowflake(-1); err == nil {
		t.Error("NewSnowflake(-1) error = nil")
	}
	if _, err := NewSnowflake(maxWorkerID + 1); err == nil {
		t.Error("NewSnowflake(max+1) error = nil")
	}
	if _, err := NewSnowflake(maxWorkerID); err != nil {
		t.Errorf("NewSnowflake(max) error = %v", err)
	}
}

func TestGenerateUniqueAndIncreasing(t *testing.T) {
	s, err := NewSnowflake(3)
	if err != nil {
		t.Fatal(err)
	}

	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := s.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than %d", id, prev)
		}
		prev = id
	}
}

func TestGenerateNoConcurrent(t *testing.T) {
	const workers, perWorker = 8, 500

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				no := GenerateTransactionNo()
				mu.Lock()
				seen[no] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("generated %d unique numbers, want %d", len(seen), workers*perWorker)
	}
}

func TestGenerateNoFormat(t *testing.T) {
	no := GenerateRewardNo()
	if !strings.HasPrefix(no, PrefixReward) {
		t.Errorf("GenerateRewardNo() = %q", no)
	}
	if len(no) != len(PrefixReward)+14+8 {
		t.Errorf("len(%q) = %d", no, len(no))
	}
}
