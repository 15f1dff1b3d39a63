package config

import (
	"fmt"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

// SquareSettings is the typed settings record of the Square payment module.
// It is read-only for the duration of a request.
type SquareSettings struct {
	Status           bool
	Production       bool
	Icon             string
	ApplicationID    string
	AccessToken      string `validate:"required_if=Status true"`
	LocationID       string `validate:"required_if=Status true"`
	OrderStatusID    int    `validate:"gte=0"`
	GeoZoneID        string
	ForbiddenItems   []string
	ForbiddenOptions []string
	Priority         int
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings for consistency.
func (s SquareSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("square settings: %w", err)
	}
	return nil
}

func loadSquareSettings(k *koanf.Koanf) (SquareSettings, error) {
	get := func(key string) string {
		field := SettingField{Key: key}
		if v := strings.TrimSpace(k.String(field.EnvKey())); v != "" {
			return v
		}
		return schemaDefault(key)
	}
	orderStatus, err := parseInt(get("order_status_id"))
	if err != nil {
		return SquareSettings{}, fmt.Errorf("SQUARE_ORDER_STATUS_ID: %w", err)
	}
	priority, err := parseInt(get("priority"))
	if err != nil {
		return SquareSettings{}, fmt.Errorf("SQUARE_PRIORITY: %w", err)
	}
	s := SquareSettings{
		Status:           parseBool(get("status")),
		Production:       parseBool(get("is_production")),
		Icon:             get("icon"),
		ApplicationID:    get("application_id"),
		AccessToken:      get("access_token"),
		LocationID:       get("location_id"),
		OrderStatusID:    orderStatus,
		GeoZoneID:        get("geo_zone_id"),
		ForbiddenItems:   SplitList(get("forbidden_items")),
		ForbiddenOptions: SplitList(get("forbidden_options")),
		Priority:         priority,
	}
	return s, s.Validate()
}

// SplitList parses a comma separated settings value, trimming whitespace around
// entries and dropping empty ones.
func SplitList(value string) []string {
	return splitAndTrim(value)
}

func parseInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func upper(s string) string {
	return strings.ToUpper(s)
}

// Values renders the settings keyed like the schema. Secrets are masked.
func (s SquareSettings) Values() map[string]string {
	token := ""
	if s.AccessToken != "" {
		token = "********"
	}
	return map[string]string{
		"status":            boolFlag(s.Status),
		"is_production":     boolFlag(s.Production),
		"icon":              s.Icon,
		"application_id":    s.ApplicationID,
		"access_token":      token,
		"location_id":       s.LocationID,
		"order_status_id":   strconv.Itoa(s.OrderStatusID),
		"geo_zone_id":       s.GeoZoneID,
		"priority":          strconv.Itoa(s.Priority),
		"forbidden_items":   strings.Join(s.ForbiddenItems, ","),
		"forbidden_options": strings.Join(s.ForbiddenOptions, ","),
	}
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
