package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	masterdata "greengauge/internal/masterdata/domain"
)

// File is the on-disk device catalog.
type File struct {
	Devices []masterdata.Device `yaml:"devices"`
}

// LoadCatalog reads a YAML device catalog. An empty path yields the built-in
// catalog.
func LoadCatalog(path string) (*masterdata.Catalog, error) {
	if path == "" {
		return masterdata.NewCatalog(masterdata.DefaultDevices())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML device catalog.
func ParseCatalog(data []byte) (*masterdata.Catalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Devices) == 0 {
		return nil, errors.New("device catalog: no devices")
	}
	return masterdata.NewCatalog(file.Devices)
}
