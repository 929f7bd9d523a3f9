// Package guard switches binaries into test mode when imported by their tests, so calling main
// does not dial Postgres, Redis or the bucket.
package guard

import (
	"os"
	"sync"
)

// EnvVar names the flag read by app.InTestMode.
const EnvVar = "CASHRECON_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(EnvVar) == "" {
			_ = os.Setenv(EnvVar, "1")
		}
	})
}
