// Package configfile loads a region's sizing and ambient knobs from a
// human-edited JSONC file, layered defaults -> global file -> project file
// (spec.md §7 "Configuration"). There is no command-line override layer.
package configfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// File is the on-disk shape of a substrate config file: the sizing fields
// and backing directory of substrate.Config (MinAvailBytes, the logger,
// registry, and codec stay Go-level options, never file fields).
type File struct {
	GlobalBytes uint64 `json:"global_bytes"`
	HeapBytes   uint64 `json:"heap_bytes"`
	DepLog2     uint   `json:"dep_log2"`
	HashLog2    uint   `json:"hash_log2"`
	BackingDir  string `json:"backing_dir,omitempty"`
}

// FileName is the default project config file name.
const FileName = ".substrate.hujson"

// DefaultFile returns the built-in defaults merged beneath any file the
// caller loads.
func DefaultFile() File {
	return File{
		GlobalBytes: 4096,
		HeapBytes:   1 << 26,
		DepLog2:     20,
		HashLog2:    20,
	}
}

// Sources records which config files actually contributed to the result,
// for diagnostics in cmd/substrate-inspect.
type Sources struct {
	Global  string
	Project string
}

var (
	errFileNotFound = errors.New("config file not found")
	errFileRead     = errors.New("failed to read config file")
	errFileInvalid  = errors.New("invalid config file")
)

// Load resolves a File with precedence defaults -> global -> project
// (spec.md §7 "layered precedence"). A non-empty configPath is read in
// place of the default project file (not in addition to it) and must
// exist; the global and default project locations are optional.
func Load(workDir, configPath string, env []string) (File, Sources, error) {
	cfg := DefaultFile()
	var sources Sources

	globalCfg, globalPath, err := loadGlobal(env)
	if err != nil {
		return File{}, Sources{}, err
	}
	sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProject(workDir, configPath)
	if err != nil {
		return File{}, Sources{}, err
	}
	sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	return cfg, sources, nil
}

func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "shm-substrate", "config.hujson")
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "shm-substrate", "config.hujson")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "shm-substrate", "config.hujson")
}

func loadGlobal(env []string) (File, string, error) {
	path := globalConfigPath(env)
	if path == "" {
		return File{}, "", nil
	}
	cfg, loaded, err := loadFile(path, false)
	if err != nil || !loaded {
		return File{}, "", err
	}
	return cfg, path, nil
}

func loadProject(workDir, configPath string) (File, string, error) {
	path := filepath.Join(workDir, FileName)
	mustExist := false
	if configPath != "" {
		path = configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		mustExist = true
	}
	cfg, loaded, err := loadFile(path, mustExist)
	if err != nil || !loaded {
		return File{}, "", err
	}
	return cfg, path, nil
}

func loadFile(path string, mustExist bool) (File, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return File{}, false, nil
		}
		if mustExist {
			return File{}, false, fmt.Errorf("%w: %s", errFileNotFound, path)
		}
		return File{}, false, fmt.Errorf("%w: %s: %w", errFileRead, path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return File{}, false, fmt.Errorf("%w %s: %w", errFileInvalid, path, err)
	}
	var cfg File
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return File{}, false, fmt.Errorf("%w %s: %w", errFileInvalid, path, err)
	}
	return cfg, true, nil
}

func merge(base, overlay File) File {
	if overlay.GlobalBytes != 0 {
		base.GlobalBytes = overlay.GlobalBytes
	}
	if overlay.HeapBytes != 0 {
		base.HeapBytes = overlay.HeapBytes
	}
	if overlay.DepLog2 != 0 {
		base.DepLog2 = overlay.DepLog2
	}
	if overlay.HashLog2 != 0 {
		base.HashLog2 = overlay.HashLog2
	}
	if overlay.BackingDir != "" {
		base.BackingDir = overlay.BackingDir
	}
	return base
}

// Format renders cfg as indented JSON for display (e.g. cmd/substrate-inspect
// --print-config).
func Format(cfg File) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}
	return string(data), nil
}

// SaveFile writes cfg's formatted JSON to path via a write-to-temp-then-
// rename, so a reader never observes a partially written file (e.g.
// cmd/substrate-inspect --write-config materializing a resolved config for
// editing while another process might be loading the same path).
func SaveFile(path string, cfg File) error {
	out, err := Format(cfg)
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, strings.NewReader(out))
}
