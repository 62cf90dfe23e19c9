package reconcile

import (
	"strings"
	"time"

	"github.com/dukerupert/shoplist/internal/grocery"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/queue"
)

// applyOp applies op locally, the way the server would, and returns the
// updated slice with the index of the affected list. The index is -1 when
// the list was deleted or is not in lists.
func applyOp(lists []model.List, op queue.Operation, owner string) ([]model.List, int) {
	at := time.UnixMilli(op.Timestamp).UTC()

	if op.Type == queue.OpCreateList {
		if idx := indexOf(lists, op.ListID); idx >= 0 {
			return lists, idx
		}
		return append([]model.List{newList(op, owner, at)}, lists...), 0
	}

	idx := indexOf(lists, op.ListID)
	if idx < 0 {
		return lists, -1
	}
	l := &lists[idx]

	switch op.Type {
	case queue.OpDeleteList:
		return append(lists[:idx:idx], lists[idx+1:]...), -1
	case queue.OpUpdateList:
		if name := op.ListUpdate.Name; name != nil {
			l.Name = strings.TrimSpace(*name)
		}
		if desc := op.ListUpdate.Description; desc != nil {
			l.Description = optional(*desc)
		}
	case queue.OpAddItem:
		if l.ItemIndex(op.ItemID) < 0 {
			l.Items = append(l.Items, newItem(op.ItemID, l.ID, *op.Item, at))
		}
	case queue.OpDeleteItem:
		if i := l.ItemIndex(op.ItemID); i >= 0 {
			l.Items = append(l.Items[:i:i], l.Items[i+1:]...)
		}
	case queue.OpToggleItem:
		if i := l.ItemIndex(op.ItemID); i >= 0 {
			l.Items[i].Completed = !l.Items[i].Completed
			l.Items[i].UpdatedAt = at
		}
	case queue.OpUpdateItem:
		if i := l.ItemIndex(op.ItemID); i >= 0 {
			updateItem(&l.Items[i], *op.ItemUpdate, at)
		}
	}
	l.UpdatedAt = at
	return lists, idx
}

// overlay replays pending operations on top of a server snapshot so local
// changes that have not synced yet stay visible. Ids are translated through
// aliases first.
func overlay(lists []model.List, ops []queue.Operation, aliases map[string]string, owner string) []model.List {
	for _, op := range ops {
		lists, _ = applyOp(lists, resolveWith(op, aliases), owner)
	}
	return lists
}

func resolveWith(op queue.Operation, aliases map[string]string) queue.Operation {
	if id, ok := aliases[op.ListID]; ok {
		op.ListID = id
	}
	if id, ok := aliases[op.ItemID]; ok {
		op.ItemID = id
	}
	return op
}

func newList(op queue.Operation, owner string, at time.Time) model.List {
	in := op.List
	l := model.List{
		ID:        op.ListID,
		Name:      strings.TrimSpace(in.Name),
		OwnerID:   owner,
		CreatedAt: at,
		UpdatedAt: at,
		Items:     make([]model.Item, 0, len(in.Items)),
	}
	if in.Description != nil {
		l.Description = optional(*in.Description)
	}
	for i, item := range in.Items {
		id := model.NewTempItemID()
		if i < len(op.ItemIDs) {
			id = op.ItemIDs[i]
		}
		l.Items = append(l.Items, newItem(id, l.ID, item, at))
	}
	return l
}

func newItem(id, listID string, in model.CreateItemInput, at time.Time) model.Item {
	name := strings.TrimSpace(in.Name)
	item := model.Item{
		ID:        id,
		Name:      name,
		Quantity:  in.QuantityOrDefault(),
		Unit:      in.UnitOrDefault(),
		ListID:    listID,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if in.Category != nil {
		item.Category = optional(*in.Category)
	}
	if item.Category == nil {
		item.Category = grocery.Suggest(name)
	}
	if in.Completed != nil {
		item.Completed = *in.Completed
	}
	return item
}

func updateItem(item *model.Item, in model.UpdateItemInput, at time.Time) {
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Quantity != nil {
		item.Quantity = *in.Quantity
	}
	if in.Unit != nil {
		item.Unit = strings.TrimSpace(*in.Unit)
		if item.Unit == "" {
			item.Unit = model.DefaultUnit
		}
	}
	if in.Category != nil {
		item.Category = optional(*in.Category)
	}
	if in.Completed != nil {
		item.Completed = *in.Completed
	}
	item.UpdatedAt = at
}

// optional trims s and maps the empty string to nil, matching how the server
// stores optional text.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func indexOf(lists []model.List, id string) int {
	for i := range lists {
		if lists[i].ID == id {
			return i
		}
	}
	return -1
}

func findItem(list *model.List, id string) *model.Item {
	if list == nil {
		return nil
	}
	if i := list.ItemIndex(id); i >= 0 {
		item := list.Items[i]
		return &item
	}
	return nil
}
