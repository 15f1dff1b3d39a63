package config

// Widget names the admin UI control used to edit a setting.
type Widget string

const (
	WidgetToggleEnabled Widget = "toggle(e/d)"
	WidgetToggleYesNo   Widget = "toggle(y/n)"
	WidgetText          Widget = "text"
	WidgetOrderStatus   Widget = "order_status"
	WidgetGeoZone       Widget = "geo_zone"
	WidgetNumber        Widget = "number"
	WidgetProducts      Widget = "products"
	WidgetAttributes    Widget = "attribute_groups"
)

// SettingField declares one configurable key of the Square module.
type SettingField struct {
	Key         string `json:"key"`
	Default     string `json:"default_value"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Widget      Widget `json:"function"`
	Multiple    bool   `json:"multiple,omitempty"`
}

// EnvKey returns the environment variable that carries the setting.
func (f SettingField) EnvKey() string {
	return squareEnvPrefix + upper(f.Key)
}

const squareEnvPrefix = "SQUARE_"

var squareSchema = []SettingField{
	{Key: "status", Default: "1", Title: "Status", Description: "Enables or disables the module.", Widget: WidgetToggleEnabled},
	{Key: "is_production", Default: "0", Title: "Is Production Mode", Description: "Enables production mode or uses the sandbox for the module.", Widget: WidgetToggleYesNo},
	{Key: "icon", Default: "images/payment/square.jpg", Title: "Icon", Description: "Path to an image to be displayed.", Widget: WidgetText},
	{Key: "application_id", Title: "Application ID", Description: "Your application ID obtained from Square.", Widget: WidgetText},
	{Key: "access_token", Title: "Access Token", Description: "Your access token obtained from Square.", Widget: WidgetText},
	{Key: "location_id", Title: "Location ID", Description: "Your location id obtained from Square.", Widget: WidgetText},
	{Key: "order_status_id", Default: "0", Title: "Order Status", Description: "Give orders made with this payment module the following order status.", Widget: WidgetOrderStatus},
	{Key: "geo_zone_id", Title: "Geo Zone Limitation", Description: "Limit this module to the selected geo zone. Otherwise, leave it blank.", Widget: WidgetGeoZone},
	{Key: "priority", Default: "0", Title: "Priority", Description: "Process this module in the given priority order.", Widget: WidgetNumber},
	{Key: "forbidden_items", Title: "Forbidden Items", Description: "A comma separated list of items (by product ID#) for which this module should be disabled.", Widget: WidgetProducts, Multiple: true},
	{Key: "forbidden_options", Title: "Forbidden Options", Description: "A comma separated list of option groups for which this module should be disabled.", Widget: WidgetAttributes, Multiple: true},
}

// SquareSchema returns a copy of the Square module settings declaration.
func SquareSchema() []SettingField {
	out := make([]SettingField, len(squareSchema))
	copy(out, squareSchema)
	return out
}

func schemaDefault(key string) string {
	for _, f := range squareSchema {
		if f.Key == key {
			return f.Default
		}
	}
	return ""
}
