// internal/niimbot/codes.go
package niimbot

import "fmt"

// RequestCode identifies a request packet type.
type RequestCode byte

const (
	RequestStartPrint      RequestCode = 0x01
	RequestStartPagePrint  RequestCode = 0x03
	RequestSetDimension    RequestCode = 0x13
	RequestSetQuantity     RequestCode = 0x15
	RequestGetRFID         RequestCode = 0x1A
	RequestAllowPrintClear RequestCode = 0x20
	RequestSetLabelDensity RequestCode = 0x21
	RequestSetLabelType    RequestCode = 0x23
	RequestGetInfo         RequestCode = 0x40
	RequestGetPrintStatus  RequestCode = 0xA3
	RequestHeartbeat       RequestCode = 0xDC
	RequestEndPagePrint    RequestCode = 0xE3
	RequestEndPrint        RequestCode = 0xF3
)

// Inbound sentinel and data packet types
const (
	PacketUnsupported byte = 0x00
	PacketDeviceError byte = 0xDB
	PacketRasterRow   byte = 0x85
)

var requestNames = map[RequestCode]string{
	RequestStartPrint:      "START_PRINT",
	RequestStartPagePrint:  "START_PAGE_PRINT",
	RequestSetDimension:    "SET_DIMENSION",
	RequestSetQuantity:     "SET_QUANTITY",
	RequestGetRFID:         "GET_RFID",
	RequestAllowPrintClear: "ALLOW_PRINT_CLEAR",
	RequestSetLabelDensity: "SET_LABEL_DENSITY",
	RequestSetLabelType:    "SET_LABEL_TYPE",
	RequestGetInfo:         "GET_INFO",
	RequestGetPrintStatus:  "GET_PRINT_STATUS",
	RequestHeartbeat:       "HEARTBEAT",
	RequestEndPagePrint:    "END_PAGE_PRINT",
	RequestEndPrint:        "END_PRINT",
}

func (c RequestCode) String() string {
	if name, ok := requestNames[c]; ok {
		return name
	}
	return fmt.Sprintf("REQUEST_%#02x", byte(c))
}

// responseOffsets lists request kinds whose response does not arrive on code+1.
// GET_INFO is absent on purpose: its offset is the requested info key.
var responseOffsets = map[RequestCode]byte{
	RequestSetLabelDensity: 16,
	RequestSetLabelType:    16,
	RequestAllowPrintClear: 16,
	RequestGetPrintStatus:  16,
}

// ResponseOffset returns the fixed response offset for a request kind.
func ResponseOffset(code RequestCode) byte {
	if offset, ok := responseOffsets[code]; ok {
		return offset
	}
	return 1
}

// ResponseType computes the expected response packet type for code with the given offset.
func ResponseType(code RequestCode, offset byte) byte {
	return byte(code) + offset
}

// InfoKey selects a device info field for GET_INFO.
type InfoKey byte

const (
	InfoDensity          InfoKey = 1
	InfoPrintSpeed       InfoKey = 2
	InfoLabelType        InfoKey = 3
	InfoLanguageType     InfoKey = 6
	InfoAutoShutdownTime InfoKey = 7
	InfoDeviceType       InfoKey = 8
	InfoSoftVersion      InfoKey = 9
	InfoBattery          InfoKey = 10
	InfoDeviceSerial     InfoKey = 11
	InfoHardVersion      InfoKey = 12
)

var infoKeyNames = map[InfoKey]string{
	InfoDensity:          "density",
	InfoPrintSpeed:       "print_speed",
	InfoLabelType:        "label_type",
	InfoLanguageType:     "language_type",
	InfoAutoShutdownTime: "auto_shutdown_time",
	InfoDeviceType:       "device_type",
	InfoSoftVersion:      "software_version",
	InfoBattery:          "battery",
	InfoDeviceSerial:     "device_serial",
	InfoHardVersion:      "hardware_version",
}

func (k InfoKey) String() string {
	if name, ok := infoKeyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("info_%d", byte(k))
}

// InfoKeys returns every known info key in ascending order.
func InfoKeys() []InfoKey {
	return []InfoKey{
		InfoDensity, InfoPrintSpeed, InfoLabelType, InfoLanguageType, InfoAutoShutdownTime,
		InfoDeviceType, InfoSoftVersion, InfoBattery, InfoDeviceSerial, InfoHardVersion,
	}
}
