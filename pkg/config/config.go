package config

import (
	"bufio"
	"os"
	"sort"
	"strings"
	"sync"
)

// Config provides access to a parsed configuration file.
type Config struct {
	mu       sync.RWMutex
	sections map[string]*Section
	order    []string

	accessedSections map[string]struct{}
}

// New creates an empty Config.
func New() *Config {
	return &Config{
		sections:         make(map[string]*Section),
		accessedSections: make(map[string]struct{}),
	}
}

// Load reads a configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapError("", "", err)
	}
	defer f.Close()

	c := New()
	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, WrapError("", "", err)
	}
	if err := c.parseLines(lines); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadString parses a configuration from a string.
func LoadString(data string) (*Config, error) {
	c := New()
	if err := c.parseLines(strings.Split(data, "\n")); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) parseLines(lines []string) error {
	var currentSection string
	var currentOptions map[string]string

	for _, rawLine := range lines {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if line == "" {
				continue
			}
		}

		// Section header
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if currentSection != "" {
				c.addSection(currentSection, currentOptions)
			}
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			if currentSection == "" {
				return NewConfigError("", "", "empty section header")
			}
			currentOptions = make(map[string]string)
			continue
		}

		// Skip options before the first section
		if currentSection == "" {
			continue
		}

		// key: value or key = value. Split at whichever separator comes
		// first so a value may contain the other one ("listen = :7180").
		ci := strings.IndexByte(line, ':')
		ei := strings.IndexByte(line, '=')
		sep := ci
		if ci < 0 || (ei >= 0 && ei < ci) {
			sep = ei
		}
		if sep < 0 {
			continue
		}
		key := strings.TrimSpace(line[:sep])
		if key == "" {
			continue
		}
		currentOptions[key] = strings.TrimSpace(line[sep+1:])
	}

	if currentSection != "" {
		c.addSection(currentSection, currentOptions)
	}
	return nil
}

func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sections[name]; ok {
		for k, v := range options {
			existing.options[strings.ToLower(k)] = v
		}
		return
	}
	c.sections[name] = newSection(name, options)
	c.order = append(c.order, name)
}

// GetSection returns a Section by name, or an error if not found.
func (c *Config) GetSection(name string) (*Section, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, ok := c.sections[name]
	if !ok {
		return nil, ErrMissingSection(name)
	}
	c.accessedSections[name] = struct{}{}
	return sec, nil
}

// GetSectionOptional returns a Section if it exists, or nil.
func (c *Config) GetSectionOptional(name string) *Section {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, ok := c.sections[name]
	if ok {
		c.accessedSections[name] = struct{}{}
	}
	return sec
}

// HasSection checks if a section exists.
func (c *Config) HasSection(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sections[name]
	return ok
}

// GetSectionNames returns all section names in file order.
func (c *Config) GetSectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, len(c.order))
	copy(result, c.order)
	return result
}

// GetPrefixSections returns all sections whose name starts with prefix,
// marking them accessed.
func (c *Config) GetPrefixSections(prefix string) []*Section {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result []*Section
	for _, name := range c.order {
		if strings.HasPrefix(name, prefix) {
			c.accessedSections[name] = struct{}{}
			result = append(result, c.sections[name])
		}
	}
	return result
}

// GetUnusedSections returns the sections that were never accessed.
func (c *Config) GetUnusedSections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []string
	for name := range c.sections {
		if _, ok := c.accessedSections[name]; !ok {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result
}

// UnusedOptions returns, per accessed section, the options never read.
func (c *Config) UnusedOptions() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string][]string)
	for name := range c.accessedSections {
		sec := c.sections[name]
		if sec == nil {
			continue
		}
		if unused := sec.GetUnusedOptions(); len(unused) > 0 {
			sort.Strings(unused)
			result[name] = unused
		}
	}
	return result
}
