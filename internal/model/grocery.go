package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// TempIDPrefix marks ids generated locally for lists the server has not
	// acknowledged yet. Server ids are UUIDs and never carry it.
	TempIDPrefix = "temp-"
	// TempItemIDPrefix marks locally generated item ids.
	TempItemIDPrefix = "temp-item-"

	DefaultQuantity = 1
	DefaultUnit     = "pcs"
)

type List struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description *string   `json:"description" yaml:"description"`
	OwnerID     string    `json:"ownerId" yaml:"ownerId"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
	Items       []Item    `json:"items" yaml:"items"`
}

type Item struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Quantity  int       `json:"quantity" yaml:"quantity"`
	Unit      string    `json:"unit" yaml:"unit"`
	Category  *string   `json:"category" yaml:"category"`
	Completed bool      `json:"completed" yaml:"completed"`
	ListID    string    `json:"listId" yaml:"listId"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// IsTempID reports whether id was generated locally (list or item).
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

func NewTempListID() string {
	return TempIDPrefix + uuid.NewString()
}

func NewTempItemID() string {
	return TempItemIDPrefix + uuid.NewString()
}

// Clone returns a deep copy so cached lists can be mutated without aliasing.
func (l List) Clone() List {
	out := l
	if l.Description != nil {
		d := *l.Description
		out.Description = &d
	}
	out.Items = make([]Item, len(l.Items))
	for i, item := range l.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

func (it Item) Clone() Item {
	out := it
	if it.Category != nil {
		c := *it.Category
		out.Category = &c
	}
	return out
}

// ItemIndex returns the position of the item with the given id, or -1.
func (l *List) ItemIndex(id string) int {
	for i := range l.Items {
		if l.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// CompletedCount returns how many items are checked off.
func (l *List) CompletedCount() int {
	n := 0
	for _, it := range l.Items {
		if it.Completed {
			n++
		}
	}
	return n
}

// --- Request payloads shared by the API handlers and the client gateway ---

type CreateListInput struct {
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	Items       []CreateItemInput `json:"items,omitempty"`
}

type UpdateListInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CreateItemInput struct {
	Name      string  `json:"name"`
	Quantity  *int    `json:"quantity,omitempty"`
	Unit      *string `json:"unit,omitempty"`
	Category  *string `json:"category,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// QuantityOrDefault applies the server default of 1.
func (in CreateItemInput) QuantityOrDefault() int {
	if in.Quantity == nil || *in.Quantity < 1 {
		return DefaultQuantity
	}
	return *in.Quantity
}

func (in CreateItemInput) UnitOrDefault() string {
	if in.Unit == nil || strings.TrimSpace(*in.Unit) == "" {
		return DefaultUnit
	}
	return strings.TrimSpace(*in.Unit)
}

type UpdateItemInput struct {
	Name      *string `json:"name,omitempty"`
	Quantity  *int    `json:"quantity,omitempty"`
	Unit      *string `json:"unit,omitempty"`
	Category  *string `json:"category,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Empty reports whether the update carries no fields.
func (in UpdateItemInput) Empty() bool {
	return in.Name == nil && in.Quantity == nil && in.Unit == nil && in.Category == nil && in.Completed == nil
}
