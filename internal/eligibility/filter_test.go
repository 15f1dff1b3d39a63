package eligibility_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-square/internal/config"
	"github.com/noah-isme/toko-square/internal/eligibility"
)

type zoneStub struct {
	in    bool
	err   error
	calls int
}

func (z *zoneStub) InZone(_ context.Context, zoneID, country, zone string) (bool, error) {
	z.calls++
	return z.in, z.err
}

type catalogStub struct {
	names map[string]string
	err   error
	langs []string
}

func (c *catalogStub) AttributeGroupName(_ context.Context, groupID, language string) (string, error) {
	c.langs = append(c.langs, language)
	if c.err != nil {
		return "", c.err
	}
	return c.names[groupID], nil
}

func enabled() config.SquareSettings {
	return config.SquareSettings{Status: true, AccessToken: "t", LocationID: "L"}
}

func cart(items ...eligibility.Item) eligibility.Input {
	return eligibility.Input{
		Items:        items,
		CurrencyCode: "USD",
		Customer:     eligibility.Customer{CountryCode: "US", ZoneCode: "CA"},
		Language:     "en",
	}
}

func TestEvaluateDisabledHidesOption(t *testing.T) {
	zones := &zoneStub{in: true}
	f := eligibility.Filter{Zones: zones}
	settings := enabled()
	settings.Status = false
	settings.GeoZoneID = "3"

	d := f.Evaluate(context.Background(), cart(eligibility.Item{ProductID: "1"}), settings)
	require.False(t, d.Offered)
	require.Nil(t, d.Violation)
	require.Zero(t, zones.calls)
}

func TestEvaluateGeoZone(t *testing.T) {
	settings := enabled()
	settings.GeoZoneID = "3"

	d := eligibility.Filter{Zones: &zoneStub{in: false}}.Evaluate(context.Background(), cart(), settings)
	require.False(t, d.Offered)

	d = eligibility.Filter{Zones: &zoneStub{in: true}}.Evaluate(context.Background(), cart(), settings)
	require.True(t, d.Offered)
	require.Nil(t, d.Violation)
}

func TestEvaluateZoneLookupErrorHides(t *testing.T) {
	var buf bytes.Buffer
	settings := enabled()
	settings.GeoZoneID = "3"
	f := eligibility.Filter{Zones: &zoneStub{err: errors.New("db down")}, Logger: zerolog.New(&buf)}

	d := f.Evaluate(context.Background(), cart(), settings)
	require.False(t, d.Offered)
	require.Contains(t, buf.String(), "geo zone lookup failed")
}

func TestEvaluateForbiddenItems(t *testing.T) {
	settings := enabled()
	settings.ForbiddenItems = []string{"15", "12", "99", "12"}

	d := eligibility.Filter{}.Evaluate(context.Background(), cart(
		eligibility.Item{ProductID: "12"},
		eligibility.Item{ProductID: "15"},
		eligibility.Item{ProductID: "7"},
	), settings)

	require.True(t, d.Offered)
	require.NotNil(t, d.Violation)
	require.Equal(t, eligibility.ForbiddenItems, d.Violation.Kind)
	require.Equal(t, []string{"15", "12"}, d.Violation.Names)
	require.Equal(t, "The following products are forbidden with this option: 15, 12", d.Violation.Message)
}

func TestEvaluateForbiddenOptions(t *testing.T) {
	settings := enabled()
	settings.ForbiddenOptions = []string{"2", "4"}
	catalog := &catalogStub{names: map[string]string{"2": "Engraving", "4": "Gift Wrap"}}
	f := eligibility.Filter{Catalog: catalog}

	d := f.Evaluate(context.Background(), cart(
		eligibility.Item{ProductID: "1"},
		eligibility.Item{ProductID: "2", Options: map[string]string{"Size": "L"}},
		eligibility.Item{ProductID: "3", Options: map[string]string{"Gift Wrap": "Yes", "Engraving": "AB"}},
	), settings)

	require.True(t, d.Offered)
	require.NotNil(t, d.Violation)
	require.Equal(t, eligibility.ForbiddenOptions, d.Violation.Kind)
	require.Equal(t, "The following options are forbidden: Engraving, Gift Wrap", d.Violation.Message)
	require.Equal(t, []string{"en", "en"}, catalog.langs)
}

func TestEvaluateAllowedOptions(t *testing.T) {
	settings := enabled()
	settings.ForbiddenOptions = []string{"2"}
	f := eligibility.Filter{Catalog: &catalogStub{names: map[string]string{"2": "Engraving"}}}

	d := f.Evaluate(context.Background(), cart(
		eligibility.Item{ProductID: "2", Options: map[string]string{"Size": "L"}},
	), settings)
	require.True(t, d.Offered)
	require.Nil(t, d.Violation)
}

func TestEvaluateCatalogErrorBecomesViolation(t *testing.T) {
	settings := enabled()
	settings.ForbiddenOptions = []string{"2"}
	f := eligibility.Filter{Catalog: &catalogStub{err: errors.New("attribute group 2 not found")}}

	d := f.Evaluate(context.Background(), cart(eligibility.Item{ProductID: "1"}), settings)
	require.True(t, d.Offered)
	require.NotNil(t, d.Violation)
	require.Equal(t, "attribute group 2 not found", d.Violation.Message)
}

func TestEvaluateForbiddenItemsCheckedBeforeOptions(t *testing.T) {
	settings := enabled()
	settings.ForbiddenItems = []string{"1"}
	settings.ForbiddenOptions = []string{"2"}
	catalog := &catalogStub{names: map[string]string{"2": "Engraving"}}

	d := eligibility.Filter{Catalog: catalog}.Evaluate(context.Background(), cart(
		eligibility.Item{ProductID: "1", Options: map[string]string{"Engraving": "X"}},
	), settings)
	require.Equal(t, eligibility.ForbiddenItems, d.Violation.Kind)
	require.Empty(t, catalog.langs)
}
