package mongo

import (
	"sync/atomic"
	"time"
)

var lastSeq atomic.Int64

// nextSeq returns a process-wide increasing value anchored to wall-clock
// nanoseconds, so ties on equal timestamps keep insertion order across
// restarts as long as clocks do not jump backwards.
func nextSeq() int64 {
	for {
		prev := lastSeq.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if lastSeq.CompareAndSwap(prev, next) {
			return next
		}
	}
}
