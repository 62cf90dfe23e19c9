package queue

import (
	"errors"
	"fmt"

	"github.com/dukerupert/shoplist/internal/model"
)

// OpType tags the variant carried by an Operation.
type OpType string

const (
	OpCreateList OpType = "create_list"
	OpDeleteList OpType = "delete_list"
	OpUpdateList OpType = "update_list"
	OpAddItem    OpType = "add_item"
	OpDeleteItem OpType = "delete_item"
	OpToggleItem OpType = "toggle_item"
	OpUpdateItem OpType = "update_item"
)

// Operation is a mutation intent that has not been confirmed by the server.
// Exactly one payload field is set, matching Type:
//
//	create_list  ListID (temporary), ItemIDs (temporary, one per List.Items), List
//	delete_list  ListID
//	update_list  ListID, ListUpdate
//	add_item     ListID, ItemID (temporary), Item
//	delete_item  ListID, ItemID
//	toggle_item  ListID, ItemID
//	update_item  ListID, ItemID, ItemUpdate
type Operation struct {
	// Seq is the insertion sequence assigned by the queue.
	Seq int64 `json:"-" yaml:"seq"`
	// Timestamp is milliseconds since the Unix epoch; replay sorts on it.
	Timestamp int64    `json:"timestamp" yaml:"timestamp"`
	Type      OpType   `json:"type" yaml:"type"`
	ListID    string   `json:"listId,omitempty" yaml:"listId,omitempty"`
	ItemID    string   `json:"itemId,omitempty" yaml:"itemId,omitempty"`
	ItemIDs   []string `json:"itemIds,omitempty" yaml:"itemIds,omitempty"`

	List       *model.CreateListInput `json:"list,omitempty" yaml:"list,omitempty"`
	ListUpdate *model.UpdateListInput `json:"listUpdate,omitempty" yaml:"listUpdate,omitempty"`
	Item       *model.CreateItemInput `json:"item,omitempty" yaml:"item,omitempty"`
	ItemUpdate *model.UpdateItemInput `json:"itemUpdate,omitempty" yaml:"itemUpdate,omitempty"`
}

// CreateList assigns a temporary id to each initial item so later operations
// can refer to them before the list reaches the server.
func CreateList(tempID string, in model.CreateListInput) Operation {
	itemIDs := make([]string, len(in.Items))
	for i := range in.Items {
		itemIDs[i] = model.NewTempItemID()
	}
	return Operation{Type: OpCreateList, ListID: tempID, ItemIDs: itemIDs, List: &in}
}

func DeleteList(listID string) Operation {
	return Operation{Type: OpDeleteList, ListID: listID}
}

func UpdateList(listID string, in model.UpdateListInput) Operation {
	return Operation{Type: OpUpdateList, ListID: listID, ListUpdate: &in}
}

func AddItem(listID, tempItemID string, in model.CreateItemInput) Operation {
	return Operation{Type: OpAddItem, ListID: listID, ItemID: tempItemID, Item: &in}
}

func DeleteItem(listID, itemID string) Operation {
	return Operation{Type: OpDeleteItem, ListID: listID, ItemID: itemID}
}

func ToggleItem(listID, itemID string) Operation {
	return Operation{Type: OpToggleItem, ListID: listID, ItemID: itemID}
}

func UpdateItem(listID, itemID string, in model.UpdateItemInput) Operation {
	return Operation{Type: OpUpdateItem, ListID: listID, ItemID: itemID, ItemUpdate: &in}
}

var ErrInvalidOperation = errors.New("invalid operation")

// Validate checks that the fields required by Type are present.
func (op Operation) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidOperation, op.Type, field)
	}
	if op.ListID == "" {
		return missing("listId")
	}

	switch op.Type {
	case OpCreateList:
		if op.List == nil {
			return missing("list")
		}
		if len(op.ItemIDs) != len(op.List.Items) {
			return fmt.Errorf("%w: create_list needs one item id per item", ErrInvalidOperation)
		}
	case OpDeleteList:
	case OpUpdateList:
		if op.ListUpdate == nil {
			return missing("listUpdate")
		}
	case OpAddItem:
		if op.Item == nil {
			return missing("item")
		}
		if op.ItemID == "" {
			return missing("itemId")
		}
	case OpDeleteItem, OpToggleItem:
		if op.ItemID == "" {
			return missing("itemId")
		}
	case OpUpdateItem:
		if op.ItemID == "" {
			return missing("itemId")
		}
		if op.ItemUpdate == nil {
			return missing("itemUpdate")
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, op.Type)
	}
	return nil
}

// IsDelete reports whether a "not found" reply means the intent already holds.
func (op Operation) IsDelete() bool {
	return op.Type == OpDeleteList || op.Type == OpDeleteItem
}

// Creates returns the temporary ids this operation introduces.
func (op Operation) Creates() []string {
	switch op.Type {
	case OpCreateList:
		return append([]string{op.ListID}, op.ItemIDs...)
	case OpAddItem:
		return []string{op.ItemID}
	}
	return nil
}

// References returns the temporary ids this operation depends on.
func (op Operation) References() []string {
	var ids []string
	if model.IsTempID(op.ListID) && op.Type != OpCreateList {
		ids = append(ids, op.ListID)
	}
	if model.IsTempID(op.ItemID) && op.Type != OpAddItem {
		ids = append(ids, op.ItemID)
	}
	return ids
}

func (op Operation) String() string {
	switch op.Type {
	case OpCreateList, OpDeleteList, OpUpdateList:
		return fmt.Sprintf("%s %s", op.Type, op.ListID)
	default:
		return fmt.Sprintf("%s %s/%s", op.Type, op.ListID, op.ItemID)
	}
}
