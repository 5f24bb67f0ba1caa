package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/flight-control/fcc/internal/link"
)

// Kind identifies a command variant.
type Kind int

const (
	KindInvalid Kind = iota
	KindUnknown
	KindConnect
	KindSetMode
	KindArm
	KindTakeoff
	KindMoveRelative
	KindClose
)

var kindNames = map[string]Kind{
	"connect":       KindConnect,
	"set_mode":      KindSetMode,
	"arm":           KindArm,
	"takeoff":       KindTakeoff,
	"move_relative": KindMoveRelative,
	"close":         KindClose,
}

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindSetMode:
		return "set_mode"
	case KindArm:
		return "arm"
	case KindTakeoff:
		return "takeoff"
	case KindMoveRelative:
		return "move_relative"
	case KindClose:
		return "close"
	case KindUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// RequiresSession reports whether the command needs an open vehicle session.
func (k Kind) RequiresSession() bool {
	switch k {
	case KindSetMode, KindArm, KindTakeoff, KindMoveRelative:
		return true
	default:
		return false
	}
}

// Command is one decoded entry. Only the fields of its Kind are set.
type Command struct {
	Index int
	Name  string
	Kind  Kind

	Mode     link.Mode
	Altitude float64
	Heading  float64
	Distance float64
}

// Entry is one raw element of a sequence.
type Entry = json.RawMessage

// DecodePlan splits a plan document into entries. A single object is a
// one-entry sequence and nested arrays are flattened in order.
func DecodePlan(data []byte) ([]Entry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidPlan)
	}

	var root json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	var entries []Entry
	flatten(root, &entries)
	return entries, nil
}

func flatten(raw json.RawMessage, out *[]Entry) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		*out = append(*out, Entry(trimmed))
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		*out = append(*out, Entry(trimmed))
		return
	}
	for _, item := range items {
		flatten(item, out)
	}
}

// rawCommand is the wire shape of an entry.
type rawCommand struct {
	Command    *string                    `json:"command"`
	Parameters map[string]json.RawMessage `json:"parameters"`
}

// Parse decodes the entry at index. The returned Command always carries
// Index, and Name when one could be read. Errors wrap ErrMalformedCommand or
// ErrUnknownCommand.
func Parse(index int, entry Entry) (Command, error) {
	cmd := Command{Index: index, Kind: KindInvalid}

	trimmed := bytes.TrimSpace(entry)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return cmd, fmt.Errorf("%w: entry is not an object", ErrMalformedCommand)
	}

	var raw rawCommand
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return cmd, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if raw.Command == nil || *raw.Command == "" {
		return cmd, fmt.Errorf("%w: missing command name", ErrMalformedCommand)
	}
	cmd.Name = *raw.Command

	kind, ok := kindNames[cmd.Name]
	if !ok {
		cmd.Kind = KindUnknown
		return cmd, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}

	params := raw.Parameters
	var err error
	switch kind {
	case KindConnect, KindArm, KindClose:
	case KindSetMode:
		var name string
		if name, err = stringParam(params, "mode"); err == nil {
			if cmd.Mode, err = link.ParseMode(name); err != nil {
				err = fmt.Errorf("%w: %v", ErrMalformedCommand, err)
			}
		}
	case KindTakeoff:
		if cmd.Altitude, err = numberParam(params, "altitude"); err == nil && cmd.Altitude <= 0 {
			err = fmt.Errorf("%w: altitude must be positive, got %v", ErrMalformedCommand, cmd.Altitude)
		}
	case KindMoveRelative:
		if cmd.Heading, err = numberParam(params, "heading"); err != nil {
			break
		}
		if cmd.Distance, err = numberParam(params, "distance"); err == nil && cmd.Distance < 0 {
			err = fmt.Errorf("%w: distance must not be negative, got %v", ErrMalformedCommand, cmd.Distance)
		}
	}
	if err != nil {
		return cmd, err
	}

	cmd.Kind = kind
	return cmd, nil
}

func stringParam(params map[string]json.RawMessage, name string) (string, error) {
	raw, ok := params[name]
	if !ok || string(raw) == "null" {
		return "", fmt.Errorf("%w: missing parameter %q", ErrMalformedCommand, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: parameter %q must be a string", ErrMalformedCommand, name)
	}
	return s, nil
}

func numberParam(params map[string]json.RawMessage, name string) (float64, error) {
	raw, ok := params[name]
	if !ok || string(raw) == "null" {
		return 0, fmt.Errorf("%w: missing parameter %q", ErrMalformedCommand, name)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: parameter %q must be a number", ErrMalformedCommand, name)
	}
	return f, nil
}
