package shared

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyLockerSerialisesPerKey(t *testing.T) {
	locker := NewKeyLocker()
	key := StockLockKey(1, 1)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locker.Lock(key)
			defer locker.Unlock(key)
			counter++
		}()
	}
	wg.Wait()
	require.Equal(t, 100, counter)
}

func TestLockAllDeduplicatesKeys(t *testing.T) {
	locker := NewKeyLocker()
	key := StockLockKey(1, 1)

	// The same key appearing twice must only be locked once, or the second
	// acquisition would self-deadlock.
	release := locker.LockAll([]string{key, key})
	release()

	locker.Lock(key)
	locker.Unlock(key)
}

func TestLockAllOrdersAcquisition(t *testing.T) {
	locker := NewKeyLocker()
	a := StockLockKey(1, 1)
	b := StockLockKey(1, 2)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []string{a, b}
			if i%2 == 1 {
				keys = []string{b, a}
			}
			release := locker.LockAll(keys)
			release()
		}(i)
	}
	wg.Wait()
}

func TestStockLockKey(t *testing.T) {
	require.Equal(t, "stock:3:9:lock", StockLockKey(3, 9))
	require.NotEqual(t, StockLockKey(1, 23), StockLockKey(12, 3))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 45)
	require.Equal(t, 2, p.Page)
	require.Equal(t, 3, p.TotalPages)

	p = NewPagination(0, 0, 5)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 1, p.TotalPages)
}
