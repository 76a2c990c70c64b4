package services

import (
	"fmt"
	"sync"
	"time"
)

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warning"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient user-visible message.
type Notice struct {
	Level   NoticeLevel
	Message string
	At      time.Time
}

func (n Notice) String() string {
	return fmt.Sprintf("[%s] %s", n.Level, n.Message)
}

// Notices receives user-visible messages from background components.
type Notices interface {
	Notify(level NoticeLevel, format string, args ...any)
}

// NoticeBoard keeps notices until they are shown or their TTL passes.
type NoticeBoard struct {
	mu    sync.Mutex
	items []Notice
	ttl   time.Duration
	now   func() time.Time
}

func NewNoticeBoard(ttl time.Duration) *NoticeBoard {
	return &NoticeBoard{ttl: ttl, now: time.Now}
}

func (b *NoticeBoard) Notify(level NoticeLevel, format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, Notice{Level: level, Message: fmt.Sprintf(format, args...), At: b.now()})
}

// Take returns notices that have not expired and dismisses all of them.
func (b *NoticeBoard) Take() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	var out []Notice
	for _, n := range b.items {
		if b.ttl <= 0 || now.Sub(n.At) < b.ttl {
			out = append(out, n)
		}
	}
	b.items = nil
	return out
}
