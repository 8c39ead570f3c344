package model

import (
	"fmt"
	"strconv"
)

// Resource is a bookable service provider (a barber).
type Resource struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// Service is a bookable offering with a fixed duration and a price that
// may vary per resource.
type Service struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	BasePrice       int64           `json:"base_price"` // cents
	PriceByResource map[int64]int64 `json:"price_by_resource,omitempty"`
}

// PriceFor returns the service price for a resource, falling back to
// the base price when no per-resource override exists.
func (s *Service) PriceFor(resourceID int64) int64 {
	if price, ok := s.PriceByResource[resourceID]; ok {
		return price
	}
	return s.BasePrice
}

// ResourceSelector picks either one concrete resource or any resource.
// The zero value is not valid; use AnyResource or SpecificResource.
type ResourceSelector struct {
	any bool
	id  int64
}

// AnyResource selects whichever resource is free.
func AnyResource() ResourceSelector {
	return ResourceSelector{any: true}
}

// SpecificResource selects one resource by id.
func SpecificResource(id int64) ResourceSelector {
	return ResourceSelector{id: id}
}

// IsAny reports whether the selector means "any resource".
func (s ResourceSelector) IsAny() bool { return s.any }

// ResourceID returns the concrete resource id; ok is false for Any.
func (s ResourceSelector) ResourceID() (int64, bool) {
	if s.any {
		return 0, false
	}
	return s.id, true
}

func (s ResourceSelector) String() string {
	if s.any {
		return "any"
	}
	return strconv.FormatInt(s.id, 10)
}

// ParseResourceSelector parses "any" or a numeric resource id.
func ParseResourceSelector(s string) (ResourceSelector, error) {
	if s == "any" {
		return AnyResource(), nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ResourceSelector{}, fmt.Errorf("invalid resource selector %q", s)
	}
	return SpecificResource(id), nil
}
