// Package config holds the settings shared by the assembler, the
// disassembler and the command-line tool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Address is a 32-bit address written as a "0x..." string in JSON. Plain
// JSON numbers are accepted as well.
type Address uint32

// MarshalJSON implements json.Marshaler.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n uint32
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("address must be a string or a number: %s", data)
		}
		*a = Address(n)
		return nil
	}

	v, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a Address) String() string {
	return fmt.Sprintf("0x%08X", uint32(a))
}

// ParseAddress parses a decimal or 0x-prefixed hexadecimal address.
func ParseAddress(s string) (Address, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(v), nil
}

// Config holds the translation settings.
type Config struct {
	// BaseAddress is the address of the first byte of a disassembled
	// image. Default: 0x08000000.
	BaseAddress Address `json:"base_address"`

	// ShowAddresses prefixes each disassembled line with its address and
	// raw halfword. Default: false.
	ShowAddresses bool `json:"show_addresses"`

	// FixBranches rewrites in-range branch targets to labels. Default: true.
	FixBranches bool `json:"fix_branches"`

	// ResolveLabels enables label resolution in the assembler.
	// Default: true.
	ResolveLabels bool `json:"resolve_labels"`

	// NameTable maps addresses ("0x08000100") to symbol names shown next
	// to branch targets.
	NameTable map[string]string `json:"name_table,omitempty"`
}

// Default returns a Config with the default settings.
func Default() *Config {
	return &Config{
		BaseAddress:   0x08000000,
		ShowAddresses: false,
		FixBranches:   true,
		ResolveLabels: true,
	}
}

// Load reads a Config from a JSON file. Settings missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c := Default()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return c, nil
}

// Save writes the Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the base address alignment and the name table keys.
func (c *Config) Validate() error {
	if c.BaseAddress&1 != 0 {
		return fmt.Errorf("base_address %s must be halfword aligned", c.BaseAddress)
	}
	if _, err := c.Names(); err != nil {
		return err
	}
	return nil
}

// Names returns the name table keyed by numeric address.
func (c *Config) Names() (map[uint32]string, error) {
	names := make(map[uint32]string, len(c.NameTable))
	for key, name := range c.NameTable {
		addr, err := ParseAddress(key)
		if err != nil {
			return nil, fmt.Errorf("name_table: %w", err)
		}
		names[uint32(addr)] = name
	}
	return names, nil
}

// AddNames merges names into the name table. Existing entries win.
func (c *Config) AddNames(names map[uint32]string) {
	if len(names) == 0 {
		return
	}
	if c.NameTable == nil {
		c.NameTable = make(map[string]string, len(names))
	}
	for addr, name := range names {
		key := Address(addr).String()
		if _, ok := c.NameTable[key]; !ok {
			c.NameTable[key] = name
		}
	}
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.NameTable != nil {
		clone.NameTable = make(map[string]string, len(c.NameTable))
		for k, v := range c.NameTable {
			clone.NameTable[k] = v
		}
	}
	return &clone
}
