// internal/model/printer.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// ConnectionType represents how the printer is connected
type ConnectionType string

const (
	ConnectionTypeSerial    ConnectionType = "SERIAL"
	ConnectionTypeUSB       ConnectionType = "USB"
	ConnectionTypeBluetooth ConnectionType = "BLUETOOTH"
)

// ParseConnectionType accepts the lower or upper case config spelling.
func ParseConnectionType(s string) (ConnectionType, bool) {
	switch ConnectionType(strings.ToUpper(strings.TrimSpace(s))) {
	case ConnectionTypeSerial:
		return ConnectionTypeSerial, true
	case ConnectionTypeUSB, "":
		return ConnectionTypeUSB, true
	case ConnectionTypeBluetooth, "BT":
		return ConnectionTypeBluetooth, true
	}
	return "", false
}

// JSONObject type for PostgreSQL JSONB objects
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Printer is a configured label printer as exposed by the API
type Printer struct {
	Name           string         `json:"name"`
	Model          string         `json:"model"`
	ConnectionType ConnectionType `json:"connection_type"`
	Address        string         `json:"address"`
	Density        int            `json:"default_density"`
	LabelType      int            `json:"default_label_type"`
	MaxWidth       int            `json:"max_width"`
	MaxDensity     int            `json:"max_density"`
	Busy           bool           `json:"busy"`
}
