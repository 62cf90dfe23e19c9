package reconcile

import (
	"context"

	"github.com/dukerupert/shoplist/internal/apperr"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/queue"
)

func (r *Reconciler) CreateList(ctx context.Context, in model.CreateListInput) (*model.List, Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.remote.CreateList(ctx, in)
	if err == nil {
		return r.putList(ctx, *list), OriginRemote, nil
	}
	if !apperr.IsNetwork(err) {
		return nil, OriginRemote, r.fail(ctx, err)
	}

	local, err := r.enqueue(ctx, queue.CreateList(model.NewTempListID(), in))
	return local, OriginQueued, err
}

func (r *Reconciler) UpdateList(ctx context.Context, id string, in model.UpdateListInput) (*model.List, Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.resolve(ctx, queue.UpdateList(id, in))
	if err != nil {
		return nil, OriginRemote, err
	}
	if !waiting(op) {
		list, err := r.remote.UpdateList(ctx, op.ListID, in)
		if err == nil {
			return r.putList(ctx, *list), OriginRemote, nil
		}
		if !apperr.IsNetwork(err) {
			return nil, OriginRemote, r.fail(ctx, err)
		}
	}

	local, err := r.enqueue(ctx, op)
	return local, OriginQueued, err
}

// DeleteList removes a list. A list the server no longer has counts as
// deleted.
func (r *Reconciler) DeleteList(ctx context.Context, id string) (Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.resolve(ctx, queue.DeleteList(id))
	if err != nil {
		return OriginRemote, err
	}
	if !waiting(op) {
		err := r.remote.DeleteList(ctx, op.ListID)
		if err == nil || apperr.IsNotFound(err) {
			if err := r.cache.Delete(ctx, op.ListID); err != nil {
				r.storageWarning(err)
			}
			return OriginRemote, nil
		}
		if !apperr.IsNetwork(err) {
			return OriginRemote, r.fail(ctx, err)
		}
	}

	_, err = r.enqueue(ctx, op)
	return OriginQueued, err
}

func (r *Reconciler) AddItem(ctx context.Context, listID string, in model.CreateItemInput) (*model.Item, Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.resolve(ctx, queue.AddItem(listID, model.NewTempItemID(), in))
	if err != nil {
		return nil, OriginRemote, err
	}
	if !waiting(op) {
		item, err := r.remote.AddItem(ctx, op.ListID, in)
		if err == nil {
			r.putItem(ctx, *item)
			return item, OriginRemote, nil
		}
		if !apperr.IsNetwork(err) {
			return nil, OriginRemote, r.fail(ctx, err)
		}
	}

	local, err := r.enqueue(ctx, op)
	return findItem(local, op.ItemID), OriginQueued, err
}

func (r *Reconciler) UpdateItem(ctx context.Context, listID, itemID string, in model.UpdateItemInput) (*model.Item, Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.resolve(ctx, queue.UpdateItem(listID, itemID, in))
	if err != nil {
		return nil, OriginRemote, err
	}
	if !waiting(op) {
		item, err := r.remote.UpdateItem(ctx, op.ListID, op.ItemID, in)
		if err == nil {
			r.putItem(ctx, *item)
			return item, OriginRemote, nil
		}
		if !apperr.IsNetwork(err) {
			return nil, OriginRemote, r.fail(ctx, err)
		}
	}

	local, err := r.enqueue(ctx, op)
	return findItem(local, op.ItemID), OriginQueued, err
}

// ToggleItem flips an item's completed flag. The returned item carries the
// server's value, which may differ from the cached one when another call
// toggled it first.
func (r *Reconciler) ToggleItem(ctx context.Context, listID, itemID string) (*model.Item, Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.resolve(ctx, queue.ToggleItem(listID, itemID))
	if err != nil {
		return nil, OriginRemote, err
	}
	if !waiting(op) {
		item, err := r.remote.ToggleItem(ctx, op.ListID, op.ItemID)
		if err == nil {
			r.putItem(ctx, *item)
			return item, OriginRemote, nil
		}
		if !apperr.IsNetwork(err) {
			return nil, OriginRemote, r.fail(ctx, err)
		}
	}

	local, err := r.enqueue(ctx, op)
	return findItem(local, op.ItemID), OriginQueued, err
}

// DeleteItem removes an item. An item the server no longer has counts as
// deleted.
func (r *Reconciler) DeleteItem(ctx context.Context, listID, itemID string) (Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.resolve(ctx, queue.DeleteItem(listID, itemID))
	if err != nil {
		return OriginRemote, err
	}
	if !waiting(op) {
		err := r.remote.DeleteItem(ctx, op.ListID, op.ItemID)
		if err == nil || apperr.IsNotFound(err) {
			r.dropItem(ctx, op.ListID, op.ItemID)
			return OriginRemote, nil
		}
		if !apperr.IsNetwork(err) {
			return OriginRemote, r.fail(ctx, err)
		}
	}

	_, err = r.enqueue(ctx, op)
	return OriginQueued, err
}

// waiting reports whether op still refers to an entity whose create has not
// reached the server, in which case it can only be queued behind it.
func waiting(op queue.Operation) bool {
	return len(op.References()) > 0
}

// resolve translates temporary ids that the server has since acknowledged.
func (r *Reconciler) resolve(ctx context.Context, op queue.Operation) (queue.Operation, error) {
	var err error
	if model.IsTempID(op.ListID) && op.Type != queue.OpCreateList {
		if op.ListID, err = r.queue.Resolve(ctx, op.ListID); err != nil {
			return op, err
		}
	}
	if model.IsTempID(op.ItemID) && op.Type != queue.OpAddItem {
		if op.ItemID, err = r.queue.Resolve(ctx, op.ItemID); err != nil {
			return op, err
		}
	}
	return op, nil
}

// enqueue records op and applies it to the cached copy of its list. The
// returned list is nil when the list was deleted or is not cached. Once the
// operation is queued a cache failure is reported as a notice rather than an
// error, since the change itself is safe.
func (r *Reconciler) enqueue(ctx context.Context, op queue.Operation) (*model.List, error) {
	op.Timestamp = r.now().UnixMilli()
	op, err := r.queue.Enqueue(ctx, op)
	if err != nil {
		return nil, err
	}
	r.logger.Info("queued offline", "op", op.String())
	r.notify.Notify(Notice{Kind: NoticeQueued, Message: "Offline: saved locally, will sync when back online"})

	var lists []model.List
	if op.Type != queue.OpCreateList {
		cached, err := r.cache.Get(ctx, op.ListID)
		if err != nil {
			r.storageWarning(err)
			return nil, nil
		}
		if cached == nil {
			return nil, nil
		}
		lists = []model.List{*cached}
	}

	lists, idx := applyOp(lists, op, r.ownerID(ctx))
	if op.Type == queue.OpDeleteList {
		if err := r.cache.Delete(ctx, op.ListID); err != nil {
			r.storageWarning(err)
		}
		return nil, nil
	}
	if idx < 0 {
		return nil, nil
	}
	list := lists[idx]
	if err := r.cache.Save(ctx, list); err != nil {
		r.storageWarning(err)
	}
	return &list, nil
}

// putList caches a list confirmed by the server, with any still-pending
// local changes for it layered on top. It returns what was cached, or nil
// when a pending delete hides the list.
func (r *Reconciler) putList(ctx context.Context, list model.List) *model.List {
	merged, err := r.withPending(ctx, []model.List{list})
	if err != nil {
		r.storageWarning(err)
		merged = []model.List{list}
	}

	idx := indexOf(merged, list.ID)
	if idx < 0 {
		if err := r.cache.Delete(ctx, list.ID); err != nil {
			r.storageWarning(err)
		}
		return nil
	}
	out := merged[idx]
	if err := r.cache.Save(ctx, out); err != nil {
		r.storageWarning(err)
	}
	return &out
}

// putItem merges a server-confirmed item into its cached list. A list that
// is no longer cached is left alone.
func (r *Reconciler) putItem(ctx context.Context, item model.Item) {
	list, err := r.cache.Get(ctx, item.ListID)
	if err != nil {
		r.storageWarning(err)
		return
	}
	if list == nil {
		return
	}
	if i := list.ItemIndex(item.ID); i >= 0 {
		list.Items[i] = item
	} else {
		list.Items = append(list.Items, item)
	}
	if item.UpdatedAt.After(list.UpdatedAt) {
		list.UpdatedAt = item.UpdatedAt
	}
	if err := r.cache.Save(ctx, *list); err != nil {
		r.storageWarning(err)
	}
}

func (r *Reconciler) dropItem(ctx context.Context, listID, itemID string) {
	list, err := r.cache.Get(ctx, listID)
	if err != nil {
		r.storageWarning(err)
		return
	}
	if list == nil {
		return
	}
	i := list.ItemIndex(itemID)
	if i < 0 {
		return
	}
	list.Items = append(list.Items[:i], list.Items[i+1:]...)
	list.UpdatedAt = r.now().UTC()
	if err := r.cache.Save(ctx, *list); err != nil {
		r.storageWarning(err)
	}
}

// withPending layers queued operations over a server snapshot.
func (r *Reconciler) withPending(ctx context.Context, lists []model.List) ([]model.List, error) {
	ops, err := r.queue.PeekAll(ctx)
	if err != nil {
		return lists, err
	}
	if len(ops) == 0 {
		return lists, nil
	}
	aliases, err := r.queue.Aliases(ctx)
	if err != nil {
		return lists, err
	}
	return overlay(lists, ops, aliases, r.ownerID(ctx)), nil
}
