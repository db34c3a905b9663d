package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MERCHSTOCK_TEST_MODE") == "" {
			_ = os.Setenv("MERCHSTOCK_TEST_MODE", "1")
		}
	})
}
