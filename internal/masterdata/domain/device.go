package masterdata

import (
	"errors"
	"math"
	"sort"
	"strings"
)

var (
	// ErrUnknownDevice is returned when a device key is not in the catalog.
	ErrUnknownDevice = errors.New("device: unknown device")
	// ErrDuplicateDevice is returned when two descriptors share a key.
	ErrDuplicateDevice = errors.New("device: duplicate key")
)

// Device describes one monitored appliance.
type Device struct {
	Key      string  `json:"key" yaml:"key"`
	Name     string  `json:"name" yaml:"name"`
	SourceID string  `json:"source_id" yaml:"source_id"`
	Watts    float64 `json:"watts" yaml:"watts"`
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.Key == "" {
		return errors.New("device: empty key")
	}
	if d.SourceID == "" {
		return errors.New("device: empty source id")
	}
	if d.Watts < 0 || math.IsNaN(d.Watts) || math.IsInf(d.Watts, 0) {
		return errors.New("device: watts must be a finite non-negative number")
	}
	return nil
}

// DisplayName returns Name, or a title-cased form of Key when Name is empty.
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return FormatDeviceKey(d.Key)
}

// FormatDeviceKey turns "table_fan" into "Table Fan".
func FormatDeviceKey(key string) string {
	words := strings.Split(key, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}

// Catalog is the immutable set of configured devices.
type Catalog struct {
	byKey map[string]Device
	keys  []string
}

// NewCatalog validates devices and indexes them by lower-cased key.
func NewCatalog(devices []Device) (*Catalog, error) {
	catalog := &Catalog{byKey: make(map[string]Device, len(devices))}
	for _, device := range devices {
		if err := device.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(device.Key)
		if _, ok := catalog.byKey[key]; ok {
			return nil, ErrDuplicateDevice
		}
		device.Key = key
		device.Name = device.DisplayName()
		catalog.byKey[key] = device
		catalog.keys = append(catalog.keys, key)
	}
	sort.Strings(catalog.keys)
	return catalog, nil
}

// Get resolves a device by key, case-insensitively.
func (c *Catalog) Get(key string) (Device, error) {
	if c == nil {
		return Device{}, ErrUnknownDevice
	}
	device, ok := c.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Device{}, ErrUnknownDevice
	}
	return device, nil
}

// List returns every device ordered by key.
func (c *Catalog) List() []Device {
	if c == nil {
		return nil
	}
	out := make([]Device, 0, len(c.keys))
	for _, key := range c.keys {
		out = append(out, c.byKey[key])
	}
	return out
}

// DefaultDevices is the built-in catalog.
func DefaultDevices() []Device {
	return []Device{
		{Key: "lightbulb", Name: "Light Bulb", SourceID: "light_bulb", Watts: 0.07},
		{Key: "table_fan", Name: "Table Fan", SourceID: "Table_Fan", Watts: 0.7},
		{Key: "hair_dryer", Name: "Hair Dryer", SourceID: "hair_dryer", Watts: 8.04},
		{Key: "induction_stove", Name: "Induction Stove", SourceID: "INDUCTION_STOVE", Watts: 8.9},
		{Key: "iron_box", Name: "Iron Box", SourceID: "ironbox_final", Watts: 4.07},
		{Key: "kettle", Name: "Kettle", SourceID: "KETTLE", Watts: 6.3},
	}
}
