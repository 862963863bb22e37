package models

import (
	"encoding/json"
)

// CuratedKind names a curated product list stored in the config store
type CuratedKind string

const (
	CarouselIDs CuratedKind = "carousel"
	TopPickIDs  CuratedKind = "top-picks"
)

// ParseCuratedKind accepts only the known curated list kinds
func ParseCuratedKind(s string) (CuratedKind, error) {
	switch CuratedKind(s) {
	case CarouselIDs, TopPickIDs:
		return CuratedKind(s), nil
	}
	return "", NotFoundf("Unknown collection: %s", s)
}

// ConfigKey is the config store key holding this list
func (k CuratedKind) ConfigKey() string {
	switch k {
	case CarouselIDs:
		return "carouselProductIds"
	case TopPickIDs:
		return "topPickProductIds"
	}
	return string(k)
}

// CuratedList is an ordered list of product ids. Order is significant.
type CuratedList struct {
	Kind       CuratedKind `json:"kind"`
	ProductIDs []int       `json:"productIds"`
}

// Validate requires positive, distinct product ids
func (l *CuratedList) Validate() error {
	seen := make(map[int]bool, len(l.ProductIDs))
	for _, id := range l.ProductIDs {
		if id <= 0 {
			return Validationf("Product ids must be positive integers")
		}
		if seen[id] {
			return Validationf("Duplicate product id: %d", id)
		}
		seen[id] = true
	}
	return nil
}

// DecodeCuratedList parses a stored config value
func DecodeCuratedList(kind CuratedKind, raw []byte) (*CuratedList, error) {
	list := &CuratedList{Kind: kind}
	if len(raw) == 0 {
		list.ProductIDs = []int{}
		return list, nil
	}
	if err := json.Unmarshal(raw, &list.ProductIDs); err != nil {
		return nil, NewError(ErrValidation, "Stored collection is not a list of product ids", err)
	}
	if list.ProductIDs == nil {
		list.ProductIDs = []int{}
	}
	if err := list.Validate(); err != nil {
		return nil, err
	}
	return list, nil
}

// Encode serializes the ids for the config store
func (l *CuratedList) Encode() ([]byte, error) {
	ids := l.ProductIDs
	if ids == nil {
		ids = []int{}
	}
	return json.Marshal(ids)
}
