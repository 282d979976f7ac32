package valuestore

import (
	"runtime"
	"time"
)

// spinHint yields the scheduler briefly while waiting on a SENTINEL slot to
// publish. Go has no portable PAUSE-instruction intrinsic; Gosched plus a
// short sleep gives other goroutines (and OS threads on other cores, via
// the scheduler's run-queue rebalancing) a chance to make progress without
// this goroutine busy-looping at full CPU.
func spinHint() {
	runtime.Gosched()
	time.Sleep(50 * time.Microsecond)
}
