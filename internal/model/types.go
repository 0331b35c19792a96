package model

import "time"

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// User holds the claims decoded from the bearer token payload.
type User struct {
	ID    int64  `json:"id,omitempty"`
	Sub   string `json:"sub"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

func (u *User) IsAdmin() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleSuperadmin)
}

// Account is a user record as returned by the backend admin endpoints.
type Account struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Device is a physical device reported by the backend usage endpoint.
// Usage is nil when the backend has no current reading.
type Device struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Icon  string   `json:"icon"`
	Usage *float64 `json:"usage"`
	Unit  string   `json:"unit"`
}

const (
	NotificationWarning = "warning"
	NotificationInfo    = "info"
	NotificationSuccess = "success"
)

type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Measurement is one sensor record from the backend.
type Measurement struct {
	Timestamp          time.Time `json:"timestamp"`
	SolarVoltage       float64   `json:"solar_voltage"`
	SolarCurrent       float64   `json:"solar_current"`
	PowerConsumption   float64   `json:"power_consumption"`
	BatteryLevel       float64   `json:"battery_level"`
	InsideTemperature  float64   `json:"inside_temperature"`
	OutsideTemperature float64   `json:"outside_temperature"`
	Humidity           float64   `json:"humidity"`
}

// DailyAggregate is one day of averaged measurements. Prediction is the
// model's forecast for that day, absent when the backend has none.
type DailyAggregate struct {
	Date                string   `json:"date"`
	AvgSolarVoltage     float64  `json:"avg_solar_voltage"`
	AvgPowerConsumption float64  `json:"avg_power_consumption"`
	AvgBatteryLevel     float64  `json:"avg_battery_level"`
	AvgHumidity         float64  `json:"avg_humidity"`
	Prediction          *float64 `json:"prediction,omitempty"`
}

// LayoutPreference is the persisted widget ordering and visibility choice.
// Order must contain every currently known widget id; Hidden is kept verbatim
// even when it names ids that no longer exist.
type LayoutPreference struct {
	Order  []string `json:"order"`
	Hidden []string `json:"hidden"`
}
