package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/maypok86/otter"
)

const noticeLogCapacity = 4096

// noticeLog prints a message at most once per key within a TTL window, so a
// render loop picking the same placeholder does not flood the log.
type noticeLog struct {
	cache otter.Cache[string, struct{}]
	on    bool
}

func newNoticeLog(window time.Duration) (*noticeLog, error) {
	if window <= 0 {
		return &noticeLog{}, nil
	}
	cache, err := otter.MustBuilder[string, struct{}](noticeLogCapacity).
		Cost(func(_ string, _ struct{}) uint32 { return 1 }).
		WithTTL(window).
		Build()
	if err != nil {
		return nil, fmt.Errorf("engine: build notice log: %w", err)
	}
	return &noticeLog{cache: cache, on: true}, nil
}

// Printf logs unless key was already logged within the window.
func (n *noticeLog) Printf(key, format string, args ...any) {
	if n.on && !n.cache.SetIfAbsent(key, struct{}{}) {
		return
	}
	log.Printf(format, args...)
}

func (n *noticeLog) Close() {
	if n.on {
		n.cache.Close()
	}
}
