package types

import "time"

// Credentials are the Powerfox account credentials of the logged in user.
// They only ever live in the sealed session cookie and the request context.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Valid returns true if both the email and the password are set.
func (c Credentials) Valid() bool {
	return c.Email != "" && c.Password != ""
}

// Device represents a Powerfox meter (poweropti) associated with the account.
type Device struct {
	DeviceID               string    `json:"deviceId"`
	Name                   string    `json:"name,omitempty"`
	AccountAssociatedSince int64     `json:"accountAssociatedSince,omitempty"`
	MainDevice             bool      `json:"mainDevice"`
	Prosumer               bool      `json:"prosumer"`
	Division               int       `json:"division"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// CurrentReading is the live reading of a device. It is passed through to
// the dashboard and not persisted.
type CurrentReading struct {
	DeviceID     string   `json:"deviceId"`
	Timestamp    int64    `json:"timestamp"`
	Outdated     bool     `json:"outdated"`
	Watt         *float64 `json:"watt"`
	KiloWattHour *float64 `json:"kiloWattHour"`
	APlus        *float64 `json:"aPlus"`
	APlusHT      *float64 `json:"aPlusHT"`
	APlusNT      *float64 `json:"aPlusNT"`
	AMinus       *float64 `json:"aMinus"`
}

// APICallLog records a single call made against the Powerfox API.
type APICallLog struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Endpoint     string            `json:"endpoint"`
	Method       string            `json:"method"`
	Params       map[string]string `json:"params,omitempty"`
	StatusCode   int               `json:"statusCode"`
	Success      bool              `json:"success"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	DurationMS   int64             `json:"durationMs"`
}

// APICallLogFilter narrows down a listing of the API call log.
type APICallLogFilter struct {
	Limit      int
	Endpoint   string
	FailedOnly bool
}
