// Package eligibility decides whether the Square option may be offered for a cart.
package eligibility

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-square/internal/config"
)

// ZoneLookup answers geo-zone membership for a customer address.
type ZoneLookup interface {
	InZone(ctx context.Context, zoneID, countryCode, zoneCode string) (bool, error)
}

// CatalogLookup resolves an attribute group id to its display name.
type CatalogLookup interface {
	AttributeGroupName(ctx context.Context, groupID, language string) (string, error)
}

// Item is the part of a cart line the rules look at. Options is keyed by the
// option group display name.
type Item struct {
	ProductID string
	Name      string
	Options   map[string]string
}

// Customer carries the address fields used for geo-zone checks.
type Customer struct {
	CountryCode string
	ZoneCode    string
}

// Input is the cart snapshot evaluated by Filter.
type Input struct {
	Items        []Item
	CurrencyCode string
	Customer     Customer
	Language     string
}

// ViolationKind names the rule that blocked the option.
type ViolationKind string

const (
	ForbiddenItems   ViolationKind = "forbidden_items"
	ForbiddenOptions ViolationKind = "forbidden_options"
)

// Violation explains why an offered option cannot be selected.
type Violation struct {
	Kind    ViolationKind
	Names   []string
	Message string
}

// Decision is the outcome of Evaluate. Offered with a Violation means the
// option is listed but carries an error instead of a cost.
type Decision struct {
	Offered   bool
	Violation *Violation
}

// Filter applies the status, geo-zone and forbidden-list rules.
type Filter struct {
	Zones   ZoneLookup
	Catalog CatalogLookup
	Logger  zerolog.Logger
}

// Evaluate never returns an error; lookup failures become hidden options or
// violations.
func (f Filter) Evaluate(ctx context.Context, in Input, settings config.SquareSettings) Decision {
	if !settings.Status {
		return Decision{}
	}
	if zoneID := strings.TrimSpace(settings.GeoZoneID); zoneID != "" && !f.inZone(ctx, zoneID, in.Customer) {
		return Decision{}
	}

	if v := forbiddenItems(settings.ForbiddenItems, in.Items); v != nil {
		return Decision{Offered: true, Violation: v}
	}
	if v := f.forbiddenOptions(ctx, settings.ForbiddenOptions, in); v != nil {
		return Decision{Offered: true, Violation: v}
	}
	return Decision{Offered: true}
}

func (f Filter) inZone(ctx context.Context, zoneID string, c Customer) bool {
	if f.Zones == nil {
		f.Logger.Warn().Str("geo_zone_id", zoneID).Msg("geo zone configured without zone lookup")
		return false
	}
	ok, err := f.Zones.InZone(ctx, zoneID, c.CountryCode, c.ZoneCode)
	if err != nil {
		f.Logger.Error().Err(err).Str("geo_zone_id", zoneID).Str("country_code", c.CountryCode).Msg("geo zone lookup failed")
		return false
	}
	return ok
}

func forbiddenItems(forbidden []string, items []Item) *Violation {
	if len(forbidden) == 0 {
		return nil
	}
	inCart := make(map[string]struct{}, len(items))
	for _, it := range items {
		inCart[strings.TrimSpace(it.ProductID)] = struct{}{}
	}
	var hits []string
	for _, id := range dedupe(forbidden) {
		if _, ok := inCart[id]; ok {
			hits = append(hits, id)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	return &Violation{
		Kind:    ForbiddenItems,
		Names:   hits,
		Message: "The following products are forbidden with this option: " + strings.Join(hits, ", "),
	}
}

func (f Filter) forbiddenOptions(ctx context.Context, groupIDs []string, in Input) *Violation {
	groupIDs = dedupe(groupIDs)
	if len(groupIDs) == 0 {
		return nil
	}
	if f.Catalog == nil {
		return &Violation{Kind: ForbiddenOptions, Message: "attribute group lookup not configured"}
	}

	names := make([]string, 0, len(groupIDs))
	for _, id := range groupIDs {
		name, err := f.Catalog.AttributeGroupName(ctx, id, in.Language)
		if err != nil {
			f.Logger.Error().Err(err).Str("attribute_group_id", id).Msg("attribute group lookup failed")
			return &Violation{Kind: ForbiddenOptions, Message: lookupMessage(err)}
		}
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	names = dedupe(names)

	for _, it := range in.Items {
		if len(it.Options) == 0 {
			continue
		}
		var hits []string
		for _, name := range names {
			if _, ok := it.Options[name]; ok {
				hits = append(hits, name)
			}
		}
		if len(hits) > 0 {
			return &Violation{
				Kind:    ForbiddenOptions,
				Names:   hits,
				Message: "The following options are forbidden: " + strings.Join(hits, ", "),
			}
		}
	}
	return nil
}

func lookupMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "attribute group lookup failed"
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
