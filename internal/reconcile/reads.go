package reconcile

import (
	"context"

	"github.com/dukerupert/shoplist/internal/apperr"
	"github.com/dukerupert/shoplist/internal/cache"
	"github.com/dukerupert/shoplist/internal/model"
)

// Refresh replaces the cached lists with the server's, keeping pending local
// changes visible. Offline, or when the server cannot be reached, it serves
// the cache instead.
func (r *Reconciler) Refresh(ctx context.Context) ([]model.List, Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refresh(ctx)
}

func (r *Reconciler) refresh(ctx context.Context) ([]model.List, Origin, error) {
	if r.offline.Load() {
		return r.cachedLists(ctx)
	}

	lists, err := r.remote.GetLists(ctx)
	if err != nil {
		if apperr.IsNetwork(err) {
			return r.cachedLists(ctx)
		}
		return nil, OriginRemote, r.fail(ctx, err)
	}

	merged, err := r.replaceAll(ctx, lists)
	if err != nil {
		return nil, OriginRemote, err
	}
	return merged, OriginRemote, nil
}

func (r *Reconciler) replaceAll(ctx context.Context, lists []model.List) ([]model.List, error) {
	merged, err := r.withPending(ctx, lists)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SaveAll(ctx, merged); err != nil {
		return nil, err
	}
	return r.cache.GetAll(ctx)
}

func (r *Reconciler) cachedLists(ctx context.Context) ([]model.List, Origin, error) {
	lists, err := r.cache.GetAll(ctx)
	if err != nil {
		return nil, OriginCache, err
	}
	r.notify.Notify(Notice{Kind: NoticeCacheServed, Message: "Offline: showing saved lists"})
	return lists, OriginCache, nil
}

// LoadList fetches one list. A list still waiting for its create to sync is
// served from the cache. When the server reports the list gone it is dropped
// from the cache too. A nil list with a nil error means the list is not
// available offline.
func (r *Reconciler) LoadList(ctx context.Context, id string) (*model.List, Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.queue.Resolve(ctx, id)
	if err != nil {
		return nil, OriginCache, err
	}
	if r.offline.Load() || model.IsTempID(id) {
		return r.cachedList(ctx, id, nil)
	}

	list, err := r.remote.GetList(ctx, id)
	if err != nil {
		if apperr.IsNetwork(err) {
			return r.cachedList(ctx, id, err)
		}
		if apperr.IsNotFound(err) {
			if derr := r.cache.Delete(ctx, id); derr != nil {
				r.storageWarning(derr)
			}
		}
		return nil, OriginRemote, r.fail(ctx, err)
	}
	return r.putList(ctx, *list), OriginRemote, nil
}

// cachedList serves id from the cache. When it is not cached and the remote
// attempt failed, that failure is returned.
func (r *Reconciler) cachedList(ctx context.Context, id string, remoteErr error) (*model.List, Origin, error) {
	list, err := r.cache.Get(ctx, id)
	if err != nil {
		return nil, OriginCache, err
	}
	if list == nil {
		return nil, OriginCache, remoteErr
	}
	if !model.IsTempID(id) {
		r.notify.Notify(Notice{Kind: NoticeCacheServed, Message: "Offline: showing saved list"})
	}
	return list, OriginCache, nil
}

// LoadShared fetches a publicly shared list and remembers it for offline
// viewing.
func (r *Reconciler) LoadShared(ctx context.Context, id string) (*cache.SharedList, Origin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var remoteErr error
	if !r.offline.Load() {
		list, err := r.remote.GetPublicList(ctx, id)
		if err == nil {
			if err := r.cache.SaveShared(ctx, *list); err != nil {
				r.storageWarning(err)
			}
			return &cache.SharedList{List: *list, CachedAt: r.now().UTC()}, OriginRemote, nil
		}
		if !apperr.IsNetwork(err) {
			return nil, OriginRemote, err
		}
		remoteErr = err
	}

	shared, err := r.cache.GetShared(ctx, id)
	if err != nil {
		return nil, OriginCache, err
	}
	if shared == nil {
		return nil, OriginCache, remoteErr
	}
	r.notify.Notify(Notice{Kind: NoticeCacheServed, Message: "Offline: showing saved copy"})
	return shared, OriginCache, nil
}
