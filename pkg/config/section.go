package config

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Section provides typed access to one config section's options with
// access tracking.
type Section struct {
	name    string
	options map[string]string

	mu       sync.Mutex
	accessed map[string]struct{}
}

func newSection(name string, options map[string]string) *Section {
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[strings.ToLower(k)] = v
	}
	return &Section{
		name:     name,
		options:  opts,
		accessed: make(map[string]struct{}),
	}
}

// GetName returns the section name.
func (s *Section) GetName() string {
	return s.name
}

func (s *Section) markAccessed(option string) {
	s.mu.Lock()
	s.accessed[strings.ToLower(option)] = struct{}{}
	s.mu.Unlock()
}

// GetUnusedOptions returns options that were never read.
func (s *Section) GetUnusedOptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []string
	for opt := range s.options {
		if _, ok := s.accessed[opt]; !ok {
			result = append(result, opt)
		}
	}
	return result
}

// HasOption checks if an option exists in this section.
func (s *Section) HasOption(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// Get returns a string option value. A fallback makes the option optional;
// without one a missing option is an error.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	key := strings.ToLower(option)
	if v, ok := s.options[key]; ok {
		s.markAccessed(option)
		return v, nil
	}
	if len(fallback) > 0 {
		s.markAccessed(option)
		return fallback[0], nil
	}
	return "", ErrMissingOption(s.name, option)
}

// GetInt returns an integer option value.
func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	key := strings.ToLower(option)
	if v, ok := s.options[key]; ok {
		s.markAccessed(option)
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, ErrInvalidValue(s.name, option, v, "integer")
		}
		return i, nil
	}
	if len(fallback) > 0 {
		s.markAccessed(option)
		return fallback[0], nil
	}
	return 0, ErrMissingOption(s.name, option)
}

// GetFloat returns a float64 option value.
func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	key := strings.ToLower(option)
	if v, ok := s.options[key]; ok {
		s.markAccessed(option)
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, ErrInvalidValue(s.name, option, v, "float")
		}
		return f, nil
	}
	if len(fallback) > 0 {
		s.markAccessed(option)
		return fallback[0], nil
	}
	return 0, ErrMissingOption(s.name, option)
}

// GetFloatMin returns a float64 option value that must be >= minVal.
func (s *Section) GetFloatMin(option string, minVal float64, fallback ...float64) (float64, error) {
	v, err := s.GetFloat(option, fallback...)
	if err != nil {
		return 0, err
	}
	if v < minVal {
		return 0, ErrOutOfRange(s.name, option, v, "must have minimum of "+strconv.FormatFloat(minVal, 'f', -1, 64))
	}
	return v, nil
}

// GetBool returns a boolean option value.
// Accepts: 1, true, yes, on (true) and 0, false, no, off (false).
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	key := strings.ToLower(option)
	if v, ok := s.options[key]; ok {
		s.markAccessed(option)
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true, nil
		case "0", "false", "no", "off":
			return false, nil
		default:
			return false, ErrInvalidValue(s.name, option, v, "boolean (true/false/yes/no/on/off/1/0)")
		}
	}
	if len(fallback) > 0 {
		s.markAccessed(option)
		return fallback[0], nil
	}
	return false, ErrMissingOption(s.name, option)
}

// GetPrefixOptions returns all option names starting with prefix, sorted.
func (s *Section) GetPrefixOptions(prefix string) []string {
	prefix = strings.ToLower(prefix)
	var result []string
	for opt := range s.options {
		if strings.HasPrefix(opt, prefix) {
			result = append(result, opt)
		}
	}
	sort.Strings(result)
	return result
}

// RawOptions returns a copy of the raw options map.
func (s *Section) RawOptions() map[string]string {
	result := make(map[string]string, len(s.options))
	for k, v := range s.options {
		result[k] = v
	}
	return result
}
