package reconcile

import "github.com/dukerupert/shoplist/internal/queue"

type NoticeKind int

const (
	NoticeQueued NoticeKind = iota + 1
	NoticeCacheServed
	NoticeSyncComplete
	NoticeSyncPartial
	NoticeSyncFailed
	NoticeSessionExpired
	NoticeStorage
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeQueued:
		return "queued"
	case NoticeCacheServed:
		return "cached"
	case NoticeSyncComplete:
		return "sync_complete"
	case NoticeSyncPartial:
		return "sync_partial"
	case NoticeSyncFailed:
		return "sync_failed"
	case NoticeSessionExpired:
		return "session_expired"
	case NoticeStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Notice is a short user-facing message about something the reconciler did
// on the user's behalf. Summary is set for the sync notices.
type Notice struct {
	Kind    NoticeKind
	Message string
	Summary *queue.Summary
}

// IsWarning reports whether the notice should be rendered as a warning.
func (n Notice) IsWarning() bool {
	switch n.Kind {
	case NoticeSyncPartial, NoticeSyncFailed, NoticeSessionExpired, NoticeStorage:
		return true
	}
	return false
}

type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}
