package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/shoplist/internal/apperr"
	"github.com/dukerupert/shoplist/internal/queue"
)

// ErrDependencyFailed marks an operation that was not attempted because the
// create it depends on has not reached the server.
var ErrDependencyFailed = errors.New("depends on a change that has not synced")

// Sync drains the queue against the server. A call made while a drain is
// running joins it and receives the same summary; operations queued after
// the running drain took its snapshot wait for the next one.
func (r *Reconciler) Sync(ctx context.Context) (queue.Summary, error) {
	v, err, shared := r.drains.Do("drain", func() (any, error) {
		return r.drain(ctx)
	})
	if shared {
		r.logger.Debug("joined in-flight drain")
	}
	summary, _ := v.(queue.Summary)
	return summary, err
}

// OnOnline is called when connectivity returns. It drains the queue when
// anything is pending and otherwise refreshes the cache.
func (r *Reconciler) OnOnline(ctx context.Context) error {
	if r.offline.Swap(false) {
		r.logger.Info("online")
	}

	empty, err := r.queue.IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		_, err := r.Sync(ctx)
		return err
	}
	_, _, err = r.Refresh(ctx)
	return err
}

// OnOffline makes reads serve the cache. Writes still try the server once
// before queueing.
func (r *Reconciler) OnOffline() {
	if !r.offline.Swap(true) {
		r.logger.Info("offline")
	}
}

// OnRemoteChange refreshes after the server reports a change, unless local
// changes are still waiting to sync.
func (r *Reconciler) OnRemoteChange(ctx context.Context) error {
	empty, err := r.queue.IsEmpty(ctx)
	if err != nil || !empty {
		return err
	}
	_, _, err = r.Refresh(ctx)
	return err
}

// drainState is what one drain pass remembers between operations.
type drainState struct {
	// failed holds temporary ids whose create did not succeed this pass.
	failed map[string]bool
	// aliases holds ids acknowledged this pass, in case persisting them fails.
	aliases map[string]string
	// stop short-circuits the rest of the pass once the server is
	// unreachable or rejects the credential.
	stop    error
	authErr bool
}

func (r *Reconciler) drain(ctx context.Context) (queue.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := &drainState{failed: map[string]bool{}, aliases: map[string]string{}}
	summary, err := r.queue.Drain(ctx, func(ctx context.Context, op queue.Operation) error {
		err := r.replay(ctx, op, st)
		if err != nil {
			for _, id := range op.Creates() {
				st.failed[id] = true
			}
		}
		return err
	})
	if err != nil {
		return summary, err
	}

	r.logger.Info("drain finished", "succeeded", summary.Succeeded, "failed", summary.Failed)

	if summary.Succeeded > 0 && !apperr.IsNetwork(st.stop) {
		lists, err := r.remote.GetLists(ctx)
		if err == nil {
			if _, err := r.replaceAll(ctx, lists); err != nil {
				r.storageWarning(err)
			}
		} else {
			r.logger.Warn("refresh after drain", "error", err)
		}
	}
	if st.authErr {
		r.expireSession(ctx)
	}

	r.report(summary)
	return summary, nil
}

// replay sends one queued operation to the server.
func (r *Reconciler) replay(ctx context.Context, op queue.Operation, st *drainState) error {
	if st.stop != nil {
		return st.stop
	}
	for _, ref := range op.References() {
		if st.failed[ref] {
			return fmt.Errorf("%w: %s", ErrDependencyFailed, ref)
		}
	}

	op, err := r.resolveDrain(ctx, op, st)
	if err != nil {
		return err
	}
	if waiting(op) {
		return fmt.Errorf("%w: %s", ErrDependencyFailed, op.References()[0])
	}

	err = r.send(ctx, op, st)
	if err != nil && op.IsDelete() && apperr.IsNotFound(err) {
		err = nil
	}
	switch {
	case err == nil:
		r.logger.Debug("replayed", "op", op.String())
	case apperr.IsNetwork(err):
		st.stop = err
	case apperr.IsAuth(err):
		st.stop = err
		st.authErr = true
	}
	return err
}

func (r *Reconciler) send(ctx context.Context, op queue.Operation, st *drainState) error {
	switch op.Type {
	case queue.OpCreateList:
		list, err := r.remote.CreateList(ctx, *op.List)
		if err != nil {
			return err
		}
		r.alias(ctx, st, op.ListID, list.ID)
		for i, tempID := range op.ItemIDs {
			if i < len(list.Items) {
				r.alias(ctx, st, tempID, list.Items[i].ID)
			}
		}
		if err := r.cache.Rekey(ctx, op.ListID, *list); err != nil {
			r.storageWarning(err)
		}
		return nil

	case queue.OpUpdateList:
		_, err := r.remote.UpdateList(ctx, op.ListID, *op.ListUpdate)
		return err

	case queue.OpDeleteList:
		return r.remote.DeleteList(ctx, op.ListID)

	case queue.OpAddItem:
		item, err := r.remote.AddItem(ctx, op.ListID, *op.Item)
		if err != nil {
			return err
		}
		r.alias(ctx, st, op.ItemID, item.ID)
		return nil

	case queue.OpUpdateItem:
		_, err := r.remote.UpdateItem(ctx, op.ListID, op.ItemID, *op.ItemUpdate)
		return err

	case queue.OpToggleItem:
		_, err := r.remote.ToggleItem(ctx, op.ListID, op.ItemID)
		return err

	case queue.OpDeleteItem:
		return r.remote.DeleteItem(ctx, op.ListID, op.ItemID)
	}
	return fmt.Errorf("%w: unknown type %q", queue.ErrInvalidOperation, op.Type)
}

func (r *Reconciler) alias(ctx context.Context, st *drainState, tempID, serverID string) {
	st.aliases[tempID] = serverID
	if err := r.queue.SetAlias(ctx, tempID, serverID); err != nil {
		r.storageWarning(err)
	}
}

// resolveDrain resolves ids through this pass's aliases, then the persisted
// ones.
func (r *Reconciler) resolveDrain(ctx context.Context, op queue.Operation, st *drainState) (queue.Operation, error) {
	op = resolveWith(op, st.aliases)
	if op.Type == queue.OpCreateList {
		return op, nil
	}
	return r.resolve(ctx, op)
}

func (r *Reconciler) report(s queue.Summary) {
	switch {
	case s.Succeeded == 0 && s.Failed == 0:
		return
	case s.Failed == 0:
		r.notify.Notify(Notice{
			Kind:    NoticeSyncComplete,
			Message: fmt.Sprintf("Synced %s", plural(s.Succeeded, "change")),
			Summary: &s,
		})
	case s.Succeeded > 0:
		r.notify.Notify(Notice{
			Kind:    NoticeSyncPartial,
			Message: fmt.Sprintf("Synced %s, %d still pending", plural(s.Succeeded, "change"), s.Failed),
			Summary: &s,
		})
	default:
		r.notify.Notify(Notice{
			Kind:    NoticeSyncFailed,
			Message: fmt.Sprintf("Sync failed, %s still pending", plural(s.Failed, "change")),
			Summary: &s,
		})
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
