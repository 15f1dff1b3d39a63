package repo

import (
	"context"
	"fmt"
	"strings"
)

const inZoneSQL = `SELECT EXISTS (
    SELECT 1 FROM zones_to_geo_zones
    WHERE geo_zone_id = $1 AND country_code = $2 AND (zone_code = '' OR zone_code = $3)
)`

// GeoZones answers geo-zone membership. It implements eligibility.ZoneLookup.
type GeoZones struct {
	DB DBTX
}

// InZone reports whether the country (and zone, when the geo zone is that
// specific) belongs to geo zone zoneID.
func (g GeoZones) InZone(ctx context.Context, zoneID, countryCode, zoneCode string) (bool, error) {
	id, err := parseID(zoneID)
	if err != nil {
		return false, err
	}
	country := strings.ToUpper(strings.TrimSpace(countryCode))
	if country == "" {
		return false, nil
	}
	var ok bool
	if err := g.DB.QueryRow(ctx, inZoneSQL, id, country, strings.TrimSpace(zoneCode)).Scan(&ok); err != nil {
		return false, fmt.Errorf("geo zone %d lookup: %w", id, err)
	}
	return ok, nil
}
