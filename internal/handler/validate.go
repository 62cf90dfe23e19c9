package handler

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/shoplist/internal/model"
)

const (
	maxListName    = 100
	maxDescription = 500
	maxItemName    = 200
	maxUnit        = 20
	maxCategory    = 50
	minPassword    = 6
	minUserName    = 2
	maxUserName    = 50
)

// validationError is a user-facing 400 message.
type validationError string

func (e validationError) Error() string { return string(e) }

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return validationError("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationError("invalid email")
	}
	return nil
}

func validateRegister(email, password, name string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return validationError("password is required")
	}
	if runeLen(password) < minPassword {
		return validationError("password must be at least 6 characters")
	}
	if name == "" {
		return validationError("name is required")
	}
	if n := runeLen(name); n < minUserName || n > maxUserName {
		return validationError("name must be between 2 and 50 characters")
	}
	return nil
}

func validateListName(name string) error {
	if name == "" {
		return validationError("list name is required")
	}
	if runeLen(name) > maxListName {
		return validationError("list name must be between 1 and 100 characters")
	}
	return nil
}

func validateDescription(desc *string) error {
	if desc != nil && runeLen(*desc) > maxDescription {
		return validationError("description must not exceed 500 characters")
	}
	return nil
}

func validateItemName(name string) error {
	if name == "" {
		return validationError("item name is required")
	}
	if runeLen(name) > maxItemName {
		return validationError("item name must be between 1 and 200 characters")
	}
	return nil
}

func validateItemFields(quantity *int, unit, category *string) error {
	if quantity != nil && *quantity < 1 {
		return validationError("quantity must be a positive integer")
	}
	if unit != nil && runeLen(*unit) > maxUnit {
		return validationError("unit must not exceed 20 characters")
	}
	if category != nil && runeLen(*category) > maxCategory {
		return validationError("category must not exceed 50 characters")
	}
	return nil
}

// normalizeCreateItem trims the input in place and validates it.
func normalizeCreateItem(in *model.CreateItemInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = trimPtr(in.Unit)
	in.Category = trimPtr(in.Category)
	if err := validateItemName(in.Name); err != nil {
		return err
	}
	return validateItemFields(in.Quantity, in.Unit, in.Category)
}

func normalizeUpdateItem(in *model.UpdateItemInput) error {
	in.Name = trimPtr(in.Name)
	in.Unit = trimPtr(in.Unit)
	in.Category = trimPtr(in.Category)
	if in.Name != nil {
		if err := validateItemName(*in.Name); err != nil {
			return err
		}
	}
	if in.Unit != nil && *in.Unit == "" {
		unit := model.DefaultUnit
		in.Unit = &unit
	}
	return validateItemFields(in.Quantity, in.Unit, in.Category)
}
