package vfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileID is the typed, on-disk configuration of one logical file: its
// page size, the directory triple the versioned page layer mounts, and
// the watermark controlling when its per-file cache starts evicting.
// It round-trips through YAML and is persisted next to the file it
// describes.
type FileID struct {
	Name            string `yaml:"name"`
	PageSize        int    `yaml:"page_size"`
	CacheWatermark  int    `yaml:"cache_watermark"`
	InstancePoolCap int    `yaml:"instance_pool_cap"`
	MasterPath      string `yaml:"master_path"`
	LogPath         string `yaml:"log_path"`
	SyncLogPath     string `yaml:"sync_log_path"`
}

// DefaultFileID returns a FileID with the module's standard defaults.
func DefaultFileID(name, dir string) FileID {
	return FileID{
		Name:            name,
		PageSize:        4096,
		CacheWatermark:  512,
		InstancePoolCap: 10,
		MasterPath:      dir + "/" + name + ".master",
		LogPath:         dir + "/" + name + ".vlog",
		SyncLogPath:     dir + "/" + name + ".synclog",
	}
}

// LoadFileID reads a FileID from its YAML sidecar file.
func LoadFileID(path string) (FileID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileID{}, fmt.Errorf("vfile: load file id %s: %w", path, err)
	}
	var id FileID
	if err := yaml.Unmarshal(data, &id); err != nil {
		return FileID{}, fmt.Errorf("vfile: parse file id %s: %w", path, err)
	}
	return id, nil
}

// Save persists the FileID to path as YAML.
func (id FileID) Save(path string) error {
	data, err := yaml.Marshal(id)
	if err != nil {
		return fmt.Errorf("vfile: marshal file id: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("vfile: save file id %s: %w", path, err)
	}
	return nil
}
