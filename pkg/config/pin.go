package config

import (
	"strconv"
	"strings"
)

// Pin is a parsed pin specification.
type Pin struct {
	Name   string // Line name (e.g., "gpio25")
	Chip   string // GPIO chip name (default: "gpiochip0")
	Invert bool   // Inverted logic (! prefix)
	Pullup int    // 1 = pull-up (^), -1 = pull-down (~), 0 = none
}

// FullName returns the pin name including the chip prefix if not default.
func (p Pin) FullName() string {
	if p.Chip != "" && p.Chip != "gpiochip0" {
		return p.Chip + ":" + p.Name
	}
	return p.Name
}

// Offset returns the numeric line offset of the pin. Accepts "gpio25",
// "GPIO25" or a bare number.
func (p Pin) Offset() (int, error) {
	name := strings.ToLower(p.Name)
	name = strings.TrimPrefix(name, "gpio")
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 {
		return 0, NewConfigError("", "", "invalid gpio line in pin name: "+p.Name)
	}
	return n, nil
}

// ParsePin parses a pin specification string.
// Format: [chip:][^|~][!]pin_name
// Examples: "gpio25", "!gpio25", "^gpio25", "gpiochip1:gpio4"
func ParsePin(desc string) (Pin, error) {
	d := strings.TrimSpace(desc)
	if d == "" {
		return Pin{}, NewConfigError("", "", "empty pin specification")
	}

	p := Pin{Chip: "gpiochip0"}

	if strings.HasPrefix(d, "^") {
		p.Pullup = 1
		d = strings.TrimSpace(d[1:])
	} else if strings.HasPrefix(d, "~") {
		p.Pullup = -1
		d = strings.TrimSpace(d[1:])
	}
	if strings.HasPrefix(d, "!") {
		p.Invert = true
		d = strings.TrimSpace(d[1:])
	}
	if idx := strings.Index(d, ":"); idx >= 0 {
		p.Chip = strings.TrimSpace(d[:idx])
		d = strings.TrimSpace(d[idx+1:])
	}

	if d == "" {
		return Pin{}, NewConfigError("", "", "empty pin name in specification: "+desc)
	}
	if strings.ContainsAny(d, "^~!:") {
		return Pin{}, NewConfigError("", "", "invalid characters in pin name: "+desc)
	}

	p.Name = d
	return p, nil
}

// GetPin returns a Pin option value from the section.
func (s *Section) GetPin(option string, fallback ...Pin) (Pin, error) {
	key := strings.ToLower(option)
	if v, ok := s.options[key]; ok {
		s.markAccessed(option)
		pin, err := ParsePin(v)
		if err != nil {
			return Pin{}, WrapError(s.name, option, err)
		}
		return pin, nil
	}
	if len(fallback) > 0 {
		s.markAccessed(option)
		return fallback[0], nil
	}
	return Pin{}, ErrMissingOption(s.name, option)
}
