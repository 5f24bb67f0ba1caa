package link

import (
	"fmt"
	"strings"
)

// Mode is a flight mode name as reported by the vehicle.
type Mode string

// ArduCopter flight modes.
const (
	ModeStabilize Mode = "STABILIZE"
	ModeAcro      Mode = "ACRO"
	ModeAltHold   Mode = "ALT_HOLD"
	ModeAuto      Mode = "AUTO"
	ModeGuided    Mode = "GUIDED"
	ModeLoiter    Mode = "LOITER"
	ModeRTL       Mode = "RTL"
	ModeCircle    Mode = "CIRCLE"
	ModeLand      Mode = "LAND"

	// ModeUnknown is reported before the first heartbeat or for ids missing from the table.
	ModeUnknown Mode = "UNKNOWN"
)

// copterModes maps ArduCopter custom_mode ids.
var copterModes = map[Mode]uint32{
	ModeStabilize: 0,
	ModeAcro:      1,
	ModeAltHold:   2,
	ModeAuto:      3,
	ModeGuided:    4,
	ModeLoiter:    5,
	ModeRTL:       6,
	ModeCircle:    7,
	ModeLand:      9,
}

// ParseMode normalizes a user supplied mode name.
func ParseMode(name string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := copterModes[m]; !ok {
		return ModeUnknown, fmt.Errorf("unknown flight mode %q", name)
	}
	return m, nil
}

// CustomModeID returns the custom_mode id for m.
func CustomModeID(m Mode) (uint32, bool) {
	id, ok := copterModes[m]
	return id, ok
}

// ModeFromID maps a heartbeat custom_mode back to a Mode.
func ModeFromID(id uint32) Mode {
	for m, mid := range copterModes {
		if mid == id {
			return m
		}
	}
	return ModeUnknown
}
