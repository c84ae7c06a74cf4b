// internal/niimbot/info.go
package niimbot

import (
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// InfoValue is one GET_INFO answer.
type InfoValue struct {
	Key InfoKey
	Raw []byte
}

// Int decodes the payload as an unsigned big-endian integer. Payloads longer than
// eight bytes keep only their low-order bytes.
func (v InfoValue) Int() uint64 {
	var n uint64
	for _, b := range v.Raw {
		n = n<<8 | uint64(b)
	}
	return n
}

// Hex returns the payload as lowercase hex, the form serial numbers are reported in.
func (v InfoValue) Hex() string {
	return hex.EncodeToString(v.Raw)
}

// Version decodes a firmware or hardware version, reported in hundredths.
func (v InfoValue) Version() decimal.Decimal {
	return decimal.New(int64(v.Int()), -2)
}

// Value returns the typed decoding for the key: string for the serial number,
// decimal for the two version fields, integer for everything else.
func (v InfoValue) Value() interface{} {
	switch v.Key {
	case InfoDeviceSerial:
		return v.Hex()
	case InfoSoftVersion, InfoHardVersion:
		return v.Version()
	default:
		return v.Int()
	}
}
