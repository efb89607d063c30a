package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("GESCOM_TEST_MODE") == "" {
			_ = os.Setenv("GESCOM_TEST_MODE", "1")
		}
	})
}
