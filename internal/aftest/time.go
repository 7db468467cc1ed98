package aftest

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TimeFactor multiplies every test timeout produced by [ScaleMs].
// It is read from the AZERO_TEST_TIME_FACTOR environment variable at init,
// so that a slow or contended CI machine can lengthen timeouts
// without any test being edited.
var TimeFactor ScaledDuration = 1

func init() {
	f := os.Getenv("AZERO_TEST_TIME_FACTOR")
	if f == "" {
		return
	}

	n, err := strconv.Atoi(f)
	if err != nil {
		panic(fmt.Errorf(
			"failed to parse AZERO_TEST_TIME_FACTOR (%q) into an integer: %w",
			f, err,
		))
	}
	if n <= 0 {
		panic(fmt.Errorf("AZERO_TEST_TIME_FACTOR must be positive; got %d", n))
	}

	TimeFactor = ScaledDuration(n)
}

// ScaledDuration is a duration already multiplied by [TimeFactor].
type ScaledDuration time.Duration

// ScaleMs returns ms milliseconds multiplied by [TimeFactor].
func ScaleMs(ms int64) ScaledDuration {
	return TimeFactor * ScaledDuration(ms) * ScaledDuration(time.Millisecond)
}
