// Package reconcile keeps the local cache and the pending-operation queue in
// step with the server.
//
// Every mutating call first tries the server. A confirmed result is written
// to the cache. When the server cannot be reached the change is applied to
// the cache optimistically and queued, and the caller gets the local entity
// back with OriginQueued. Any other failure is returned unchanged. Sync
// replays the queue in timestamp order and refreshes the cache afterwards.
//
// Calls are serialized by a mutex so cache and queue updates never
// interleave. Concurrent Sync calls share one drain.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dukerupert/shoplist/internal/apperr"
	"github.com/dukerupert/shoplist/internal/cache"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/queue"
)

// Remote is the server API the reconciler drives. *gateway.Client
// implements it.
type Remote interface {
	Register(ctx context.Context, email, password, name string) (*model.AuthResult, error)
	Login(ctx context.Context, email, password string) (*model.AuthResult, error)
	Me(ctx context.Context) (*model.User, error)

	GetLists(ctx context.Context) ([]model.List, error)
	GetList(ctx context.Context, id string) (*model.List, error)
	GetPublicList(ctx context.Context, id string) (*model.List, error)
	CreateList(ctx context.Context, in model.CreateListInput) (*model.List, error)
	UpdateList(ctx context.Context, id string, in model.UpdateListInput) (*model.List, error)
	DeleteList(ctx context.Context, id string) error

	AddItem(ctx context.Context, listID string, in model.CreateItemInput) (*model.Item, error)
	UpdateItem(ctx context.Context, listID, itemID string, in model.UpdateItemInput) (*model.Item, error)
	DeleteItem(ctx context.Context, listID, itemID string) error
	ToggleItem(ctx context.Context, listID, itemID string) (*model.Item, error)
}

// Origin says where a returned entity came from.
type Origin int

const (
	// OriginRemote means the server confirmed the result.
	OriginRemote Origin = iota
	// OriginQueued means the change was applied locally and queued.
	OriginQueued
	// OriginCache means a read was served from the local cache.
	OriginCache
)

func (o Origin) String() string {
	switch o {
	case OriginQueued:
		return "queued"
	case OriginCache:
		return "cache"
	default:
		return "remote"
	}
}

type Reconciler struct {
	remote Remote
	cache  *cache.Store
	queue  *queue.Queue
	notify Notifier
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	drains  singleflight.Group
	offline atomic.Bool
}

// New wires a reconciler. A nil notifier discards notices.
func New(remote Remote, store *cache.Store, q *queue.Queue, notifier Notifier, logger *slog.Logger) *Reconciler {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Reconciler{
		remote: remote,
		cache:  store,
		queue:  q,
		notify: notifier,
		logger: logger,
		now:    time.Now,
	}
}

// Status is a snapshot for the pending-sync indicator.
type Status struct {
	Pending int         `json:"pending" yaml:"pending"`
	Offline bool        `json:"offline" yaml:"offline"`
	User    *model.User `json:"user" yaml:"user"`
}

func (r *Reconciler) Status(ctx context.Context) (Status, error) {
	n, err := r.queue.Size(ctx)
	if err != nil {
		return Status{}, err
	}
	user, err := r.cache.User(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Pending: n, Offline: r.offline.Load(), User: user}, nil
}

// Pending returns the queued operations in replay order.
func (r *Reconciler) Pending(ctx context.Context) ([]queue.Operation, error) {
	return r.queue.PeekAll(ctx)
}

func (r *Reconciler) Offline() bool {
	return r.offline.Load()
}

// --- Session ---

func (r *Reconciler) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	res, err := r.remote.Register(ctx, email, password, name)
	if err != nil {
		return nil, err
	}
	return r.startSession(ctx, res)
}

func (r *Reconciler) Login(ctx context.Context, email, password string) (*model.User, error) {
	res, err := r.remote.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return r.startSession(ctx, res)
}

// startSession stores the credential. Signing in as a different user drops
// the previous user's cache and queue.
func (r *Reconciler) startSession(ctx context.Context, res *model.AuthResult) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, err := r.cache.User(ctx)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.ID != res.User.ID {
		r.logger.Info("switching user, clearing local data", "from", prev.ID, "to", res.User.ID)
		if err := r.reset(ctx); err != nil {
			return nil, err
		}
	}
	if err := r.cache.SetSession(ctx, res.Token, res.User); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// Me returns the signed-in user, asking the server when it is reachable.
func (r *Reconciler) Me(ctx context.Context) (*model.User, Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.offline.Load() {
		user, err := r.remote.Me(ctx)
		if err == nil {
			if token, err := r.cache.Token(ctx); err == nil && token != "" {
				if err := r.cache.SetSession(ctx, token, *user); err != nil {
					r.storageWarning(err)
				}
			}
			return user, OriginRemote, nil
		}
		if !apperr.IsNetwork(err) {
			return nil, OriginRemote, r.fail(ctx, err)
		}
	}
	user, err := r.cache.User(ctx)
	return user, OriginCache, err
}

// Logout clears the credential, both cache namespaces and the queue.
func (r *Reconciler) Logout(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.cache.ClearSession(ctx); err != nil {
		return err
	}
	return r.reset(ctx)
}

func (r *Reconciler) reset(ctx context.Context) error {
	if err := r.cache.Clear(ctx); err != nil {
		return err
	}
	return r.queue.Clear(ctx)
}

// fail handles a failure that is surfaced to the caller. An auth failure
// means the credential is no longer accepted, so it is dropped.
func (r *Reconciler) fail(ctx context.Context, err error) error {
	if apperr.IsAuth(err) {
		r.expireSession(ctx)
	}
	return err
}

func (r *Reconciler) expireSession(ctx context.Context) {
	if cerr := r.cache.ClearSession(ctx); cerr != nil {
		r.logger.Warn("clear session", "error", cerr)
	}
	r.notify.Notify(Notice{Kind: NoticeSessionExpired, Message: "Session expired, please log in again"})
}

func (r *Reconciler) storageWarning(err error) {
	r.logger.Warn("local cache write failed", "error", err)
	r.notify.Notify(Notice{Kind: NoticeStorage, Message: apperr.Message(err)})
}

func (r *Reconciler) ownerID(ctx context.Context) string {
	user, err := r.cache.User(ctx)
	if err != nil || user == nil {
		return ""
	}
	return user.ID
}
