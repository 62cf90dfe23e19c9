package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/shoplist/internal/auth"
	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/store"
	ws "github.com/dukerupert/shoplist/internal/websocket"
)

type testEnv struct {
	mux    *http.ServeMux
	users  *store.UserStore
	lists  *store.ListStore
	tokens *auth.TokenIssuer
	hub    *ws.Hub
}

func setupHandlerTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	env := &testEnv{
		mux:    http.NewServeMux(),
		users:  store.NewUserStore(db),
		lists:  store.NewListStore(db),
		tokens: auth.NewTokenIssuer("test-secret", time.Hour),
		hub:    ws.NewHub(logger),
	}

	ah := NewAuthHandler(env.users, env.tokens, logger)
	lh := NewListHandler(env.lists, env.hub, logger)

	// The X-User header stands in for the bearer middleware.
	withUser := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.NewContext(r.Context(), auth.Principal{UserID: r.Header.Get("X-User")})
			h(w, r.WithContext(ctx))
		}
	}

	env.mux.HandleFunc("POST /auth/register", ah.Register)
	env.mux.HandleFunc("POST /auth/login", ah.Login)
	env.mux.HandleFunc("GET /auth/me", withUser(ah.Me))
	env.mux.HandleFunc("GET /lists/public/{id}", lh.GetPublic)
	env.mux.HandleFunc("GET /lists", withUser(lh.List))
	env.mux.HandleFunc("POST /lists", withUser(lh.Create))
	env.mux.HandleFunc("GET /lists/{id}", withUser(lh.Get))
	env.mux.HandleFunc("PUT /lists/{id}", withUser(lh.Update))
	env.mux.HandleFunc("DELETE /lists/{id}", withUser(lh.Delete))
	env.mux.HandleFunc("POST /lists/{id}/items", withUser(lh.AddItem))
	env.mux.HandleFunc("PUT /lists/{id}/items/{itemId}", withUser(lh.UpdateItem))
	env.mux.HandleFunc("DELETE /lists/{id}/items/{itemId}", withUser(lh.DeleteItem))
	env.mux.HandleFunc("PATCH /lists/{id}/items/{itemId}/toggle", withUser(lh.ToggleItem))
	return env
}

func (env *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) createUser(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := env.users.Create(email, "Tester", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupHandlerTest(t)

	rec := env.do(t, "POST", "/auth/register", "", map[string]string{
		"email": "  Alice@Example.com ", "password": "hunter22", "name": " Alice ",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	res := decodeBody[model.AuthResult](t, rec)
	if res.Token == "" {
		t.Error("expected token")
	}
	if res.User.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized", res.User.Email)
	}
	if res.User.Name != "Alice" {
		t.Errorf("name = %q, want trimmed", res.User.Name)
	}

	ac, err := env.tokens.Verify(res.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if ac.UserID != res.User.ID {
		t.Errorf("token subject = %q, want %q", ac.UserID, res.User.ID)
	}

	rec = env.do(t, "POST", "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "hunter22"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = env.do(t, "GET", "/auth/me", res.User.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	me := decodeBody[map[string]model.User](t, rec)
	if me["user"].ID != res.User.ID {
		t.Errorf("me = %+v", me)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupHandlerTest(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "nope", "password": "hunter22", "name": "Alice"}},
		{"short password", map[string]string{"email": "a@example.com", "password": "12345", "name": "Alice"}},
		{"short name", map[string]string{"email": "a@example.com", "password": "hunter22", "name": " A "}},
		{"missing name", map[string]string{"email": "a@example.com", "password": "hunter22"}},
	}
	for _, tt := range tests {
		rec := env.do(t, "POST", "/auth/register", "", tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, http.StatusBadRequest)
		}
		body := decodeBody[map[string]string](t, rec)
		if body["error"] == "" {
			t.Errorf("%s: expected error message", tt.name)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := setupHandlerTest(t)
	body := map[string]string{"email": "a@example.com", "password": "hunter22", "name": "Alice"}

	if rec := env.do(t, "POST", "/auth/register", "", body); rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}
	if rec := env.do(t, "POST", "/auth/register", "", body); rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate register status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	env := setupHandlerTest(t)
	env.do(t, "POST", "/auth/register", "", map[string]string{"email": "a@example.com", "password": "hunter22", "name": "Alice"})

	wrongPassword := env.do(t, "POST", "/auth/login", "", map[string]string{"email": "a@example.com", "password": "nope-nope"})
	unknownUser := env.do(t, "POST", "/auth/login", "", map[string]string{"email": "b@example.com", "password": "hunter22"})

	for _, rec := range []*httptest.ResponseRecorder{wrongPassword, unknownUser} {
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	}
	a := decodeBody[map[string]string](t, wrongPassword)
	b := decodeBody[map[string]string](t, unknownUser)
	if a["error"] != b["error"] {
		t.Errorf("messages differ: %q vs %q", a["error"], b["error"])
	}
}

func TestCreateListWithItems(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.createUser(t, "a@example.com")

	rec := env.do(t, "POST", "/lists", u.ID, map[string]any{
		"name":  "  Milk run ",
		"items": []map[string]any{{"name": "Milk", "quantity": 2, "unit": "l"}, {"name": "Widget"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	list := decodeBody[map[string]model.List](t, rec)["list"]
	if list.Name != "Milk run" {
		t.Errorf("name = %q, want trimmed", list.Name)
	}
	if list.OwnerID != u.ID {
		t.Errorf("owner = %q, want %q", list.OwnerID, u.ID)
	}
	if len(list.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(list.Items))
	}
	milk := list.Items[0]
	if milk.Quantity != 2 || milk.Unit != "l" {
		t.Errorf("milk = %+v", milk)
	}
	if milk.Category == nil || *milk.Category != "Dairy" {
		t.Errorf("milk category = %v, want auto-suggested Dairy", milk.Category)
	}
	widget := list.Items[1]
	if widget.Quantity != 1 || widget.Unit != "pcs" {
		t.Errorf("widget defaults = %+v", widget)
	}
	if widget.Category != nil {
		t.Errorf("widget category = %q, want nil", *widget.Category)
	}
}

func TestCreateListValidation(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.createUser(t, "a@example.com")

	long := string(bytes.Repeat([]byte("x"), 101))
	tests := []struct {
		name string
		body any
	}{
		{"empty name", map[string]any{"name": "   "}},
		{"long name", map[string]any{"name": long}},
		{"long description", map[string]any{"name": "ok", "description": string(bytes.Repeat([]byte("d"), 501))}},
		{"zero quantity", map[string]any{"name": "ok", "items": []map[string]any{{"name": "Milk", "quantity": 0}}}},
		{"fractional quantity", `{"name":"ok","items":[{"name":"Milk","quantity":1.5}]}`},
		{"empty item name", map[string]any{"name": "ok", "items": []map[string]any{{"name": " "}}}},
		{"long unit", map[string]any{"name": "ok", "items": []map[string]any{{"name": "Milk", "unit": "abcdefghijklmnopqrstu"}}}},
		{"bad json", `{"name":`},
	}
	for _, tt := range tests {
		rec := env.do(t, "POST", "/lists", u.ID, tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestListOwnership(t *testing.T) {
	env := setupHandlerTest(t)
	alice := env.createUser(t, "alice@example.com")
	bob := env.createUser(t, "bob@example.com")

	list, err := env.lists.Create(alice.ID, "Alice's", nil, []model.CreateItemInput{{Name: "Milk"}})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	itemPath := "/lists/" + list.ID + "/items/" + list.Items[0].ID

	tests := []struct {
		method, path string
		body         any
	}{
		{"GET", "/lists/" + list.ID, nil},
		{"PUT", "/lists/" + list.ID, map[string]string{"name": "mine now"}},
		{"DELETE", "/lists/" + list.ID, nil},
		{"POST", "/lists/" + list.ID + "/items", map[string]string{"name": "Eggs"}},
		{"PUT", itemPath, map[string]string{"name": "Oat milk"}},
		{"PATCH", itemPath + "/toggle", nil},
		{"DELETE", itemPath, nil},
	}
	for _, tt := range tests {
		rec := env.do(t, tt.method, tt.path, bob.ID, tt.body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s as other user: status = %d, want %d", tt.method, tt.path, rec.Code, http.StatusNotFound)
		}
	}

	rec := env.do(t, "GET", "/lists", bob.ID, nil)
	lists := decodeBody[map[string][]model.List](t, rec)["lists"]
	if len(lists) != 0 {
		t.Errorf("bob sees %d lists, want 0", len(lists))
	}

	// Public read needs no user at all.
	rec = env.do(t, "GET", "/lists/public/"+list.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("public read status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestUpdateList(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.createUser(t, "a@example.com")
	desc := "weekly shop"
	list, _ := env.lists.Create(u.ID, "Weekly", &desc, nil)

	rec := env.do(t, "PUT", "/lists/"+list.ID, u.ID, map[string]string{"name": "Weekend"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[map[string]model.List](t, rec)["list"]
	if got.Name != "Weekend" {
		t.Errorf("name = %q", got.Name)
	}
	if got.Description == nil || *got.Description != desc {
		t.Errorf("description = %v, want unchanged", got.Description)
	}

	rec = env.do(t, "PUT", "/lists/"+list.ID, u.ID, map[string]string{"name": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty name status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestItemLifecycle(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.createUser(t, "a@example.com")
	list, _ := env.lists.Create(u.ID, "Weekly", nil, nil)

	rec := env.do(t, "POST", "/lists/"+list.ID+"/items", u.ID, map[string]any{"name": "Bread"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	item := decodeBody[map[string]model.Item](t, rec)["item"]
	if item.ListID != list.ID {
		t.Errorf("listId = %q, want %q", item.ListID, list.ID)
	}
	if item.Category == nil || *item.Category != "Bakery" {
		t.Errorf("category = %v, want Bakery", item.Category)
	}
	itemPath := "/lists/" + list.ID + "/items/" + item.ID

	rec = env.do(t, "PUT", itemPath, u.ID, map[string]any{"quantity": 3, "completed": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	item = decodeBody[map[string]model.Item](t, rec)["item"]
	if item.Quantity != 3 || !item.Completed || item.Name != "Bread" {
		t.Errorf("updated item = %+v", item)
	}

	rec = env.do(t, "PATCH", itemPath+"/toggle", u.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	item = decodeBody[map[string]model.Item](t, rec)["item"]
	if item.Completed {
		t.Error("expected toggle to flip completed back to false")
	}

	rec = env.do(t, "DELETE", itemPath, u.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if msg := decodeBody[map[string]string](t, rec)["message"]; msg == "" {
		t.Error("expected message body")
	}

	rec = env.do(t, "DELETE", itemPath, u.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteList(t *testing.T) {
	env := setupHandlerTest(t)
	u := env.createUser(t, "a@example.com")
	list, _ := env.lists.Create(u.ID, "Weekly", nil, nil)

	rec := env.do(t, "DELETE", "/lists/"+list.ID, u.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = env.do(t, "DELETE", "/lists/"+list.ID, u.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	rec = env.do(t, "GET", "/lists/public/"+list.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("public read after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
