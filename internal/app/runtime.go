package app

import "os"

// InTestMode reports whether runtime side effects (listening sockets,
// worker loops) should be skipped. Integration harnesses set
// TIDEWATER_TEST_MODE=1 so binaries exit after wiring.
func InTestMode() bool {
	return os.Getenv("TIDEWATER_TEST_MODE") == "1"
}
