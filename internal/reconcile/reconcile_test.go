package reconcile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/shoplist/internal/apperr"
	"github.com/dukerupert/shoplist/internal/auth"
	"github.com/dukerupert/shoplist/internal/cache"
	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/gateway"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/queue"
	"github.com/dukerupert/shoplist/internal/server"
)

// switchTransport forwards to the real server unless the network is down.
type switchTransport struct {
	down atomic.Bool
	// reject fails matching requests as if the network dropped.
	reject atomic.Pointer[func(*http.Request) bool]
	// deny answers matching requests with 401 as if the token was revoked.
	deny atomic.Pointer[func(*http.Request) bool]
	// gate, when set, blocks every request until it is closed.
	gate    atomic.Pointer[chan struct{}]
	entered chan struct{}

	mu     sync.Mutex
	calls  []string
	bodies map[string][]string
}

func newSwitchTransport() *switchTransport {
	return &switchTransport{bodies: map[string][]string{}, entered: make(chan struct{}, 64)}
}

func (t *switchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.down.Load() {
		return nil, errors.New("dial tcp: network is down")
	}
	if f := t.reject.Load(); f != nil && (*f)(req) {
		return nil, errors.New("connection reset by peer")
	}

	key := req.Method + " " + req.URL.Path
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	if f := t.deny.Load(); f != nil && (*f)(req) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"error":"invalid or expired token"}`)),
			Request:    req,
		}, nil
	}
	t.mu.Lock()
	t.calls = append(t.calls, key)
	t.bodies[key] = append(t.bodies[key], string(body))
	t.mu.Unlock()

	if g := t.gate.Load(); g != nil {
		t.entered <- struct{}{}
		<-*g
	}
	return http.DefaultTransport.RoundTrip(req)
}

func (t *switchTransport) count(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (t *switchTransport) total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

type env struct {
	rec     *Reconciler
	cache   *cache.Store
	queue   *queue.Queue
	net     *switchTransport
	direct  *gateway.Client
	user    *model.User
	mu      sync.Mutex
	notices []Notice
}

func (e *env) noticeKinds() []NoticeKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	kinds := make([]NoticeKind, len(e.notices))
	for i, n := range e.notices {
		kinds[i] = n.Kind
	}
	return kinds
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newEnv starts a fresh server and a client signed in as a new user.
func newEnv(t *testing.T) *env {
	t.Helper()

	serverDB, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { serverDB.Close() })
	srv := server.New(serverDB, auth.NewTokenIssuer("test-secret", time.Hour), quietLogger())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	clientDB, err := database.OpenClient(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { clientDB.Close() })

	e := &env{
		cache: cache.New(clientDB),
		queue: queue.New(clientDB, quietLogger()),
		net:   newSwitchTransport(),
	}
	remote := gateway.New(gateway.Config{
		BaseURL:   ts.URL,
		Timeout:   5 * time.Second,
		Token:     e.cache.Token,
		Transport: e.net,
		Logger:    quietLogger(),
	})
	e.direct = gateway.New(gateway.Config{BaseURL: ts.URL, Token: e.cache.Token, Logger: quietLogger()})
	e.rec = New(remote, e.cache, e.queue, NotifierFunc(func(n Notice) {
		e.mu.Lock()
		e.notices = append(e.notices, n)
		e.mu.Unlock()
	}), quietLogger())

	e.user, err = e.rec.Register(context.Background(), "ann@example.com", "secret1", "Ann")
	require.NoError(t, err)
	return e
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

type itemView struct {
	Name      string
	Quantity  int
	Unit      string
	Category  string
	Completed bool
}

type listView struct {
	Name        string
	Description string
	Items       []itemView
}

func views(lists []model.List) []listView {
	out := make([]listView, 0, len(lists))
	for _, l := range lists {
		v := listView{Name: l.Name}
		if l.Description != nil {
			v.Description = *l.Description
		}
		for _, it := range l.Items {
			iv := itemView{Name: it.Name, Quantity: it.Quantity, Unit: it.Unit, Completed: it.Completed}
			if it.Category != nil {
				iv.Category = *it.Category
			}
			v.Items = append(v.Items, iv)
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func hasTempIDs(lists []model.List) bool {
	for _, l := range lists {
		if model.IsTempID(l.ID) {
			return true
		}
		for _, it := range l.Items {
			if model.IsTempID(it.ID) {
				return true
			}
		}
	}
	return false
}

func TestCreateListOnline(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	list, origin, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "Groceries"})
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, origin)
	assert.False(t, model.IsTempID(list.ID))

	cached, err := e.cache.Get(ctx, list.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "Groceries", cached.Name)

	empty, err := e.queue.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestMilkRunOfflineThenSync(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.net.down.Store(true)

	list, origin, err := e.rec.CreateList(ctx, model.CreateListInput{
		Name:  "Milk run",
		Items: []model.CreateItemInput{{Name: "Milk", Quantity: intPtr(2), Unit: strPtr("l")}},
	})
	require.NoError(t, err)
	assert.Equal(t, OriginQueued, origin)
	require.NotNil(t, list)
	tempID := list.ID
	assert.True(t, model.IsTempID(tempID))
	require.Len(t, list.Items, 1)
	assert.Equal(t, 2, list.Items[0].Quantity)
	assert.Equal(t, "l", list.Items[0].Unit)
	assert.Equal(t, e.user.ID, list.OwnerID)

	cached, err := e.cache.Get(ctx, tempID)
	require.NoError(t, err)
	require.NotNil(t, cached)

	ops, err := e.queue.PeekAll(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, queue.OpCreateList, ops[0].Type)
	assert.Contains(t, e.noticeKinds(), NoticeQueued)

	e.net.down.Store(false)
	summary, err := e.rec.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Zero(t, summary.Failed)

	assert.Equal(t, 1, e.net.count("POST /lists"))
	assert.Contains(t, e.net.bodies["POST /lists"][0], `"name":"Milk run"`)
	assert.Contains(t, e.net.bodies["POST /lists"][0], `"unit":"l"`)

	empty, err := e.queue.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	gone, err := e.cache.Get(ctx, tempID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	all, err := e.cache.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, model.IsTempID(all[0].ID))
	assert.Equal(t, views([]model.List{*list}), views(all))
	assert.Contains(t, e.noticeKinds(), NoticeSyncComplete)
}

// script performs the same user actions on any env. base is a list that
// existed on the server before the script started.
func script(t *testing.T, e *env, base *model.List) {
	t.Helper()
	ctx := context.Background()

	l, _, err := e.rec.CreateList(ctx, model.CreateListInput{
		Name:        "Milk run",
		Description: strPtr("corner shop"),
		Items: []model.CreateItemInput{
			{Name: "Milk", Quantity: intPtr(2), Unit: strPtr("l")},
			{Name: "Eggs", Quantity: intPtr(12)},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, l)

	bread, _, err := e.rec.AddItem(ctx, l.ID, model.CreateItemInput{Name: "Bread"})
	require.NoError(t, err)
	require.NotNil(t, bread)

	_, _, err = e.rec.ToggleItem(ctx, l.ID, bread.ID)
	require.NoError(t, err)
	_, _, err = e.rec.UpdateItem(ctx, l.ID, l.Items[0].ID, model.UpdateItemInput{Quantity: intPtr(3)})
	require.NoError(t, err)
	_, _, err = e.rec.UpdateList(ctx, l.ID, model.UpdateListInput{Name: strPtr("Milk and bread")})
	require.NoError(t, err)
	_, err = e.rec.DeleteItem(ctx, l.ID, l.Items[1].ID)
	require.NoError(t, err)

	_, _, err = e.rec.AddItem(ctx, base.ID, model.CreateItemInput{Name: "Apples", Quantity: intPtr(6)})
	require.NoError(t, err)
	_, _, err = e.rec.ToggleItem(ctx, base.ID, base.Items[0].ID)
	require.NoError(t, err)
	_, err = e.rec.DeleteItem(ctx, base.ID, base.Items[1].ID)
	require.NoError(t, err)

	scratch, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "Scratch"})
	require.NoError(t, err)
	_, err = e.rec.DeleteList(ctx, scratch.ID)
	require.NoError(t, err)
}

func seedBase(t *testing.T, e *env) *model.List {
	t.Helper()
	base, origin, err := e.rec.CreateList(context.Background(), model.CreateListInput{
		Name:  "Weekly",
		Items: []model.CreateItemInput{{Name: "Coffee"}, {Name: "Soap"}},
	})
	require.NoError(t, err)
	require.Equal(t, OriginRemote, origin)
	return base
}

func TestOfflineReplayMatchesOnline(t *testing.T) {
	ctx := context.Background()

	online := newEnv(t)
	script(t, online, seedBase(t, online))
	want, err := online.direct.GetLists(ctx)
	require.NoError(t, err)

	offline := newEnv(t)
	base := seedBase(t, offline)
	offline.net.down.Store(true)
	script(t, offline, base)

	n, err := offline.queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	// The local view already shows the end state.
	local, err := offline.cache.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, views(want), views(local))

	offline.net.down.Store(false)
	summary, err := offline.rec.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, summary.Succeeded)
	assert.Zero(t, summary.Failed, "failures: %v", summary.Failures)

	got, err := offline.direct.GetLists(ctx)
	require.NoError(t, err)
	assert.Equal(t, views(want), views(got))

	cached, err := offline.cache.GetAll(ctx)
	require.NoError(t, err)
	assert.False(t, hasTempIDs(cached))
	assert.Equal(t, views(got), views(cached))

	aliases, err := offline.queue.Aliases(ctx)
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestDrainDeleteOfMissingListSucceeds(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	list, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "Old"})
	require.NoError(t, err)

	e.net.down.Store(true)
	origin, err := e.rec.DeleteList(ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, OriginQueued, origin)
	e.net.down.Store(false)

	// Someone else deleted it in the meantime.
	require.NoError(t, e.direct.DeleteList(ctx, list.ID))

	summary, err := e.rec.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Failures)
}

func TestDeleteMissingItemOnlineSucceeds(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	list, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "L", Items: []model.CreateItemInput{{Name: "Tea"}}})
	require.NoError(t, err)
	require.NoError(t, e.direct.DeleteItem(ctx, list.ID, list.Items[0].ID))

	origin, err := e.rec.DeleteItem(ctx, list.ID, list.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, origin)

	cached, err := e.cache.Get(ctx, list.ID)
	require.NoError(t, err)
	assert.Empty(t, cached.Items)
}

func TestFailedCreateFailsDependents(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.net.down.Store(true)

	// Rejected by the server, but that is only learned when it is replayed.
	list, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: strings.Repeat("x", 150)})
	require.NoError(t, err)
	item, _, err := e.rec.AddItem(ctx, list.ID, model.CreateItemInput{Name: "Milk"})
	require.NoError(t, err)
	_, _, err = e.rec.ToggleItem(ctx, list.ID, item.ID)
	require.NoError(t, err)
	other, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "Fine"})
	require.NoError(t, err)

	e.net.down.Store(false)
	summary, err := e.rec.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 3, summary.Failed)

	require.Len(t, summary.Failures, 3)
	assert.True(t, apperr.IsValidation(summary.Failures[0].Err))
	assert.ErrorIs(t, summary.Failures[1].Err, ErrDependencyFailed)
	assert.ErrorIs(t, summary.Failures[2].Err, ErrDependencyFailed)

	// Only the two creates reached the server.
	assert.Equal(t, 2, e.net.count("POST /lists"))
	assert.Zero(t, e.net.count("POST /lists/"+list.ID+"/items"))

	left, err := e.queue.PeekAll(ctx)
	require.NoError(t, err)
	require.Len(t, left, 3)
	assert.Equal(t, list.ID, left[0].ListID)

	// The failed temp list stays visible, the good one has a server id.
	cached, err := e.cache.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	rekeyed, err := e.cache.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, rekeyed)
	temp, err := e.cache.Get(ctx, list.ID)
	require.NoError(t, err)
	require.NotNil(t, temp)
	require.Len(t, temp.Items, 1)
	assert.True(t, temp.Items[0].Completed)

	assert.Contains(t, e.noticeKinds(), NoticeSyncPartial)
}

func TestAliasesCarryAcrossDrains(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.net.down.Store(true)

	list, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "Party"})
	require.NoError(t, err)
	_, _, err = e.rec.AddItem(ctx, list.ID, model.CreateItemInput{Name: "Chips"})
	require.NoError(t, err)
	e.net.down.Store(false)

	reject := func(r *http.Request) bool { return strings.HasSuffix(r.URL.Path, "/items") }
	e.net.reject.Store(&reject)

	summary, err := e.rec.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, apperr.IsNetwork(summary.Failures[0].Err))

	serverID, err := e.queue.Resolve(ctx, list.ID)
	require.NoError(t, err)
	assert.False(t, model.IsTempID(serverID))

	// A later action on the temp id goes straight to the server.
	_, origin, err := e.rec.UpdateList(ctx, list.ID, model.UpdateListInput{Description: strPtr("saturday")})
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, origin)

	e.net.reject.Store(nil)
	summary, err = e.rec.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Zero(t, summary.Failed)

	got, err := e.direct.GetList(ctx, serverID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Chips", got.Items[0].Name)
	assert.Equal(t, "saturday", *got.Description)

	aliases, err := e.queue.Aliases(ctx)
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestSyncIsSingleFlight(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.net.down.Store(true)
	for _, name := range []string{"A", "B", "C"} {
		_, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: name})
		require.NoError(t, err)
	}
	e.net.down.Store(false)

	gate := make(chan struct{})
	e.net.gate.Store(&gate)

	results := make(chan queue.Summary, 2)
	go func() {
		s, err := e.rec.Sync(ctx)
		assert.NoError(t, err)
		results <- s
	}()
	<-e.net.entered // first drain is blocked inside its first request

	go func() {
		s, err := e.rec.Sync(ctx)
		assert.NoError(t, err)
		results <- s
	}()
	time.Sleep(100 * time.Millisecond)

	e.net.gate.Store(nil)
	close(gate)

	first, second := <-results, <-results
	assert.Equal(t, 3, first.Succeeded)
	assert.Equal(t, first, second)
	assert.Equal(t, 3, e.net.count("POST /lists"))
}

func TestToggleReturnsServerValue(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	list, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "L", Items: []model.CreateItemInput{{Name: "Milk"}}})
	require.NoError(t, err)
	itemID := list.Items[0].ID

	// A stale concurrent toggle already flipped it on the server.
	stale, err := e.direct.ToggleItem(ctx, list.ID, itemID)
	require.NoError(t, err)
	require.True(t, stale.Completed)

	item, origin, err := e.rec.ToggleItem(ctx, list.ID, itemID)
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, origin)
	assert.False(t, item.Completed)

	cached, err := e.cache.Get(ctx, list.ID)
	require.NoError(t, err)
	assert.False(t, cached.Items[0].Completed)
}

func TestReadsFallBackToCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "Groceries"})
	require.NoError(t, err)

	lists, origin, err := e.rec.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, origin)
	require.Len(t, lists, 1)

	e.net.down.Store(true)
	cached, origin, err := e.rec.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, OriginCache, origin)
	assert.Equal(t, views(lists), views(cached))
	assert.Contains(t, e.noticeKinds(), NoticeCacheServed)

	one, origin, err := e.rec.LoadList(ctx, lists[0].ID)
	require.NoError(t, err)
	assert.Equal(t, OriginCache, origin)
	assert.Equal(t, "Groceries", one.Name)

	_, _, err = e.rec.LoadList(ctx, "not-cached")
	assert.True(t, apperr.IsNetwork(err))
}

func TestOfflineFlagSkipsRemoteReads(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, _, err := e.rec.Refresh(ctx)
	require.NoError(t, err)

	e.rec.OnOffline()
	assert.True(t, e.rec.Offline())
	before := e.net.total()

	_, origin, err := e.rec.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, OriginCache, origin)
	assert.Equal(t, before, e.net.total())

	// Writes still try the server once.
	_, origin, err = e.rec.CreateList(ctx, model.CreateListInput{Name: "Still online"})
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, origin)
	assert.Equal(t, before+1, e.net.total())
}

func TestOnOnlineDrainsOrRefreshes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.rec.OnOffline()
	e.net.down.Store(true)
	_, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "Queued"})
	require.NoError(t, err)

	e.net.down.Store(false)
	require.NoError(t, e.rec.OnOnline(ctx))
	assert.False(t, e.rec.Offline())
	assert.Equal(t, 1, e.net.count("POST /lists"))

	empty, err := e.queue.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	before := e.net.count("GET /lists")
	require.NoError(t, e.rec.OnOnline(ctx))
	assert.Equal(t, before+1, e.net.count("GET /lists"))
}

func TestRefreshKeepsPendingChanges(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	base := seedBase(t, e)

	e.net.down.Store(true)
	_, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "Offline"})
	require.NoError(t, err)
	_, _, err = e.rec.ToggleItem(ctx, base.ID, base.Items[0].ID)
	require.NoError(t, err)
	e.net.down.Store(false)

	lists, origin, err := e.rec.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, origin)
	require.Len(t, lists, 2)

	byName := map[string]model.List{}
	for _, l := range lists {
		byName[l.Name] = l
	}
	assert.True(t, model.IsTempID(byName["Offline"].ID))
	assert.True(t, byName["Weekly"].Items[0].Completed)

	// The server itself is untouched until a sync.
	remote, err := e.direct.GetList(ctx, base.ID)
	require.NoError(t, err)
	assert.False(t, remote.Items[0].Completed)
}

func TestPermanentErrorsAreNotQueued(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "  "})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	_, _, err = e.rec.UpdateList(ctx, "missing", model.UpdateListInput{Name: strPtr("x")})
	assert.True(t, apperr.IsNotFound(err))

	n, err := e.queue.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAuthErrorClearsSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.cache.SetSession(ctx, "expired-token", *e.user))

	_, _, err := e.rec.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsAuth(err))

	token, err := e.cache.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Contains(t, e.noticeKinds(), NoticeSessionExpired)
}

func TestDrainRefreshesAfterRejectedCredential(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	e.net.down.Store(true)
	_, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "Accepted"})
	require.NoError(t, err)
	_, _, err = e.rec.CreateList(ctx, model.CreateListInput{Name: "Rejected"})
	require.NoError(t, err)
	e.net.down.Store(false)

	deny := func(r *http.Request) bool {
		if r.Method != http.MethodPost || r.URL.Path != "/lists" || r.Body == nil {
			return false
		}
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		return strings.Contains(string(body), "Rejected")
	}
	e.net.deny.Store(&deny)
	before := e.net.count("GET /lists")

	summary, err := e.rec.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, apperr.IsAuth(summary.Failures[0].Err))

	assert.Equal(t, before+1, e.net.count("GET /lists"), "a drain with successes refreshes")
	assert.Contains(t, e.noticeKinds(), NoticeSessionExpired)

	size, err := e.queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestDrainSkipsRefreshWhenNetworkDrops(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	e.net.down.Store(true)
	_, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "First"})
	require.NoError(t, err)
	_, _, err = e.rec.CreateList(ctx, model.CreateListInput{Name: "Second"})
	require.NoError(t, err)
	e.net.down.Store(false)

	var posts, refreshes atomic.Int32
	reject := func(r *http.Request) bool {
		if r.URL.Path != "/lists" {
			return false
		}
		if r.Method == http.MethodGet {
			refreshes.Add(1)
			return true
		}
		return posts.Add(1) > 1
	}
	e.net.reject.Store(&reject)

	summary, err := e.rec.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.True(t, apperr.IsNetwork(summary.Failures[0].Err))
	assert.Zero(t, refreshes.Load())
}

func TestLogoutClearsEverything(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, _, err := e.rec.LoadShared(ctx, seedBase(t, e).ID)
	require.NoError(t, err)
	e.net.down.Store(true)
	_, _, err = e.rec.CreateList(ctx, model.CreateListInput{Name: "Pending"})
	require.NoError(t, err)

	require.NoError(t, e.rec.Logout(ctx))

	status, err := e.rec.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Pending)
	assert.Nil(t, status.User)
	all, err := e.cache.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	token, err := e.cache.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestLoadShared(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	base := seedBase(t, e)

	shared, origin, err := e.rec.LoadShared(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, OriginRemote, origin)
	assert.Equal(t, "Weekly", shared.List.Name)

	e.net.down.Store(true)
	cached, origin, err := e.rec.LoadShared(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, OriginCache, origin)
	assert.Equal(t, "Weekly", cached.List.Name)
	assert.False(t, cached.CachedAt.IsZero())

	_, _, err = e.rec.LoadShared(ctx, "unknown")
	assert.True(t, apperr.IsNetwork(err))
}

func TestStorageFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenClient(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)

	net := newSwitchTransport()
	net.down.Store(true)
	store := cache.New(db)
	remote := gateway.New(gateway.Config{BaseURL: "http://127.0.0.1:1", Transport: net, Logger: quietLogger()})
	rec := New(remote, store, queue.New(db, quietLogger()), nil, quietLogger())
	require.NoError(t, db.Close())

	_, _, err = rec.CreateList(ctx, model.CreateListInput{Name: "Nowhere"})
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))
}

func TestSwitchingUserClearsLocalData(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, _, err := e.rec.CreateList(ctx, model.CreateListInput{Name: "Ann's"})
	require.NoError(t, err)

	_, err = e.rec.Register(ctx, "bob@example.com", "secret2", "Bob")
	require.NoError(t, err)

	all, err := e.cache.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	status, err := e.rec.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bob", status.User.Name)
}
