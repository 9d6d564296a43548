package questionnaire

import (
	"strconv"
	"sync"
	"time"
)

// IDSource issues entry ids from the wall clock in milliseconds, bumped so
// two entries created in the same tick never collide. The ids identify
// entries for rendering and removal only.
type IDSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDSource() *IDSource {
	return &IDSource{now: time.Now}
}

// Next returns an id that is newer than any issued before and not in taken.
func (s *IDSource) Next(taken map[string]bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.now().UnixMilli()
	if n <= s.last {
		n = s.last + 1
	}
	for taken[strconv.FormatInt(n, 10)] {
		n++
	}
	s.last = n
	return strconv.FormatInt(n, 10)
}
