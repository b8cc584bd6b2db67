package pricing

import (
	"fmt"
	"strings"
)

// Kind is the option right: Call or Put.
type Kind uint8

const (
	Call Kind = iota + 1
	Put
)

// ParseKind parses "call" or "put" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	default:
		return 0, fmt.Errorf("invalid option kind %q (must be 'call' or 'put')", s)
	}
}

// Valid reports whether k is one of the two defined variants.
func (k Kind) Valid() bool {
	return k == Call || k == Put
}

func (k Kind) String() string {
	switch k {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Title returns the display form used in chart titles ("Call", "Put").
func (k Kind) Title() string {
	switch k {
	case Call:
		return "Call"
	case Put:
		return "Put"
	default:
		return k.String()
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
