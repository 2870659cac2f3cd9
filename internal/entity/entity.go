// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package entity

import (
	"errors"
	"strings"
)

// Type identifies the catalog an identifier belongs to.
type Type string

const (
	// Anime is the anime catalog.
	Anime Type = "anime"
	// Manga is the manga catalog.
	Manga Type = "manga"
)

// All returns every supported type in processing order.
func All() []Type {
	return []Type{Anime, Manga}
}

// UnsupportedTypeError signals a type outside of the supported enumeration.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return "entity type " + e.Type + " is not supported"
}

func (e *UnsupportedTypeError) Unwrap() error {
	return errors.ErrUnsupported
}

// Parse converts value into a Type, ignoring case and surrounding spaces.
func Parse(value string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(value)))
	if err := t.Validate(); err != nil {
		return "", err
	}

	return t, nil
}

// ParseList converts values into types, dropping duplicates and keeping the processing order of All.
// An empty list returns All.
func ParseList(values []string) ([]Type, error) {
	if len(values) == 0 {
		return All(), nil
	}

	requested := make(map[Type]struct{}, len(values))
	for _, value := range values {
		t, err := Parse(value)
		if err != nil {
			return nil, err
		}
		requested[t] = struct{}{}
	}

	types := make([]Type, 0, len(requested))
	for _, t := range All() {
		if _, ok := requested[t]; ok {
			types = append(types, t)
		}
	}

	return types, nil
}

// Validate returns an *UnsupportedTypeError if t is not one of the supported types.
func (t Type) Validate() error {
	_, err := t.CatalogTable()
	return err
}

// CatalogTable returns the name of the table listing all the identifiers of t.
// The returned value is only ever one of the constants below, never derived from t itself.
func (t Type) CatalogTable() (string, error) {
	switch t {
	case Anime:
		return "anime", nil
	case Manga:
		return "manga", nil
	default:
		return "", &UnsupportedTypeError{Type: string(t)}
	}
}

func (t Type) String() string {
	return string(t)
}
