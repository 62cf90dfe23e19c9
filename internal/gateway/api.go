package gateway

import (
	"context"
	"net/http"

	"github.com/dukerupert/shoplist/internal/model"
)

// Health reports whether the server answers GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// --- Auth ---

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, email, password, name string) (*model.AuthResult, error) {
	var out model.AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", registerRequest{Email: email, Password: password, Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthResult, error) {
	var out model.AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out struct {
		User model.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// --- Lists ---

type listEnvelope struct {
	List model.List `json:"list"`
}

type itemEnvelope struct {
	Item model.Item `json:"item"`
}

func (c *Client) GetLists(ctx context.Context) ([]model.List, error) {
	var out struct {
		Lists []model.List `json:"lists"`
	}
	if err := c.do(ctx, http.MethodGet, "/lists", nil, &out); err != nil {
		return nil, err
	}
	if out.Lists == nil {
		out.Lists = []model.List{}
	}
	return out.Lists, nil
}

func (c *Client) GetList(ctx context.Context, id string) (*model.List, error) {
	return c.list(ctx, http.MethodGet, "/lists/"+pathID(id), nil)
}

// GetPublicList reads a list without credentials.
func (c *Client) GetPublicList(ctx context.Context, id string) (*model.List, error) {
	return c.list(ctx, http.MethodGet, "/lists/public/"+pathID(id), nil)
}

func (c *Client) CreateList(ctx context.Context, in model.CreateListInput) (*model.List, error) {
	return c.list(ctx, http.MethodPost, "/lists", in)
}

func (c *Client) UpdateList(ctx context.Context, id string, in model.UpdateListInput) (*model.List, error) {
	return c.list(ctx, http.MethodPut, "/lists/"+pathID(id), in)
}

func (c *Client) DeleteList(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/lists/"+pathID(id), nil, nil)
}

func (c *Client) list(ctx context.Context, method, path string, body any) (*model.List, error) {
	var out listEnvelope
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	if out.List.Items == nil {
		out.List.Items = []model.Item{}
	}
	return &out.List, nil
}

// --- Items ---

func (c *Client) AddItem(ctx context.Context, listID string, in model.CreateItemInput) (*model.Item, error) {
	return c.item(ctx, http.MethodPost, "/lists/"+pathID(listID)+"/items", in)
}

func (c *Client) UpdateItem(ctx context.Context, listID, itemID string, in model.UpdateItemInput) (*model.Item, error) {
	return c.item(ctx, http.MethodPut, itemPath(listID, itemID), in)
}

func (c *Client) DeleteItem(ctx context.Context, listID, itemID string) error {
	return c.do(ctx, http.MethodDelete, itemPath(listID, itemID), nil, nil)
}

func (c *Client) ToggleItem(ctx context.Context, listID, itemID string) (*model.Item, error) {
	return c.item(ctx, http.MethodPatch, itemPath(listID, itemID)+"/toggle", nil)
}

func (c *Client) item(ctx context.Context, method, path string, body any) (*model.Item, error) {
	var out itemEnvelope
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out.Item, nil
}

func itemPath(listID, itemID string) string {
	return "/lists/" + pathID(listID) + "/items/" + pathID(itemID)
}
