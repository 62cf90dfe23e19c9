package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shoplist/internal/auth"
	"github.com/dukerupert/shoplist/internal/grocery"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/store"
	ws "github.com/dukerupert/shoplist/internal/websocket"
)

// ListHandler serves the list and item routes. Every route except
// GetPublic is scoped to the authenticated owner; lists owned by someone
// else are reported as not found.
type ListHandler struct {
	listStore *store.ListStore
	hub       *ws.Hub
	logger    *slog.Logger
}

func NewListHandler(ls *store.ListStore, hub *ws.Hub, logger *slog.Logger) *ListHandler {
	return &ListHandler{listStore: ls, hub: hub, logger: logger}
}

func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	lists, err := h.listStore.ListByOwner(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list lists", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get lists")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lists": lists})
}

func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	list, ok := h.ownedList(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": list})
}

// GetPublic serves a read-only copy of any list by id, without auth.
func (h *ListHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	list, err := h.listStore.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get public list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get list")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"list": list})
}

func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateListInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = trimPtr(req.Description)
	if err := validateListName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateDescription(req.Description); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i := range req.Items {
		if err := normalizeCreateItem(&req.Items[i]); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		suggestCategory(&req.Items[i])
	}

	userID := auth.UserID(r.Context())
	list, err := h.listStore.Create(userID, req.Name, req.Description, req.Items)
	if err != nil {
		h.logger.Error("create list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create list")
		return
	}

	h.hub.Publish(userID, ws.NewMessage(ws.EntityList, ws.ActionCreated, list.ID, list.ID))
	writeJSON(w, http.StatusCreated, map[string]any{"list": list})
}

func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.ownedList(w, r)
	if !ok {
		return
	}

	var req model.UpdateListInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = trimPtr(req.Name)
	req.Description = trimPtr(req.Description)
	if req.Name != nil {
		if err := validateListName(*req.Name); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := validateDescription(req.Description); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.listStore.Update(existing.ID, req.Name, req.Description)
	if err != nil {
		h.logger.Error("update list", "error", err, "id", existing.ID)
		writeError(w, http.StatusInternalServerError, "failed to update list")
		return
	}

	h.hub.Publish(list.OwnerID, ws.NewMessage(ws.EntityList, ws.ActionUpdated, list.ID, list.ID))
	writeJSON(w, http.StatusOK, map[string]any{"list": list})
}

func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.ownedList(w, r)
	if !ok {
		return
	}

	if err := h.listStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete list", "error", err, "id", existing.ID)
		writeError(w, http.StatusInternalServerError, "failed to delete list")
		return
	}

	h.hub.Publish(existing.OwnerID, ws.NewMessage(ws.EntityList, ws.ActionDeleted, existing.ID, existing.ID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "list deleted"})
}

func (h *ListHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	list, ok := h.ownedList(w, r)
	if !ok {
		return
	}

	var req model.CreateItemInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := normalizeCreateItem(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	suggestCategory(&req)

	item, err := h.listStore.AddItem(list.ID, req)
	if err != nil {
		h.logger.Error("add item", "error", err, "list", list.ID)
		writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}

	h.hub.Publish(list.OwnerID, ws.NewMessage(ws.EntityItem, ws.ActionCreated, item.ID, list.ID))
	writeJSON(w, http.StatusCreated, map[string]any{"item": item})
}

func (h *ListHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	list, item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	var req model.UpdateItemInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := normalizeUpdateItem(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.listStore.UpdateItem(list.ID, item.ID, req)
	if err != nil {
		h.logger.Error("update item", "error", err, "item", item.ID)
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	h.hub.Publish(list.OwnerID, ws.NewMessage(ws.EntityItem, ws.ActionUpdated, updated.ID, list.ID))
	writeJSON(w, http.StatusOK, map[string]any{"item": updated})
}

func (h *ListHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	list, item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	if err := h.listStore.DeleteItem(list.ID, item.ID); err != nil {
		h.logger.Error("delete item", "error", err, "item", item.ID)
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	h.hub.Publish(list.OwnerID, ws.NewMessage(ws.EntityItem, ws.ActionDeleted, item.ID, list.ID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

func (h *ListHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	list, item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	toggled, err := h.listStore.ToggleItem(list.ID, item.ID)
	if err != nil {
		h.logger.Error("toggle item", "error", err, "item", item.ID)
		writeError(w, http.StatusInternalServerError, "failed to toggle item")
		return
	}
	if toggled == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.hub.Publish(list.OwnerID, ws.NewMessage(ws.EntityItem, ws.ActionToggled, toggled.ID, list.ID))
	writeJSON(w, http.StatusOK, map[string]any{"item": toggled})
}

// ownedList loads the {id} list and writes 404 unless the caller owns it.
func (h *ListHandler) ownedList(w http.ResponseWriter, r *http.Request) (*model.List, bool) {
	id := r.PathValue("id")
	list, err := h.listStore.GetByID(id)
	if err != nil {
		h.logger.Error("get list", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to get list")
		return nil, false
	}
	if list == nil || list.OwnerID != auth.UserID(r.Context()) {
		writeError(w, http.StatusNotFound, "list not found")
		return nil, false
	}
	return list, true
}

func (h *ListHandler) ownedItem(w http.ResponseWriter, r *http.Request) (*model.List, *model.Item, bool) {
	list, ok := h.ownedList(w, r)
	if !ok {
		return nil, nil, false
	}
	idx := list.ItemIndex(r.PathValue("itemId"))
	if idx < 0 {
		writeError(w, http.StatusNotFound, "item not found")
		return nil, nil, false
	}
	return list, &list.Items[idx], true
}

func suggestCategory(in *model.CreateItemInput) {
	if in.Category == nil || *in.Category == "" {
		in.Category = grocery.Suggest(in.Name)
	}
}
