// Package config handles classpatch.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "classpatch.toml"

// PatchExt is the extension of template files found in patch directories.
const PatchExt = ".patch"

// Config represents a classpatch.toml project configuration.
type Config struct {
	Project Project `toml:"project"`
	Input   Input   `toml:"input"`
	Patches Patches `toml:"patches"`
	Output  Output  `toml:"output"`
	Match   Match   `toml:"match"`
	Cache   Cache   `toml:"cache"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the classpatch.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Input lists the images to patch and the library images they are linked
// against. Library classes are visible to matching but never patched.
type Input struct {
	Images    []string `toml:"images"`
	Libraries []string `toml:"libraries"`
}

// Patches configures where templates are read from. Files are applied in
// the order listed, after every *.patch file of the directories in name
// order.
type Patches struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

// Output configures where patched images are written.
type Output struct {
	Dir string `toml:"dir"`
}

// Match bounds the search.
type Match struct {
	MaxSteps int `toml:"max-steps"`
}

// Cache configures the scope cache.
type Cache struct {
	Path    string `toml:"path"`
	Enabled bool   `toml:"enabled"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no classpatch.toml exists.
func Default(dir string) *Config {
	c := &Config{Dir: dir}
	c.applyDefaults(nil)
	return c
}

// Load parses a classpatch.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.applyDefaults(&md)
	return &c, nil
}

func (c *Config) applyDefaults(md *toml.MetaData) {
	if len(c.Patches.Dirs) == 0 && len(c.Patches.Files) == 0 {
		c.Patches.Dirs = []string{"patches"}
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
	if c.Match.MaxSteps == 0 {
		c.Match.MaxSteps = 1 << 20
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(".classpatch", "cache.db")
	}
	if md == nil || !md.IsDefined("cache", "enabled") {
		c.Cache.Enabled = true
	}
}

// FindAndLoad walks up from startDir to find a classpatch.toml file,
// then loads and returns the configuration. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

func (c *Config) absAll(ps []string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, c.abs(p))
	}
	return out
}

// ImagePaths returns absolute paths of the images to patch.
func (c *Config) ImagePaths() []string {
	return c.absAll(c.Input.Images)
}

// LibraryPaths returns absolute paths of the library images.
func (c *Config) LibraryPaths() []string {
	return c.absAll(c.Input.Libraries)
}

// OutputPath returns where the patched version of image is written.
func (c *Config) OutputPath(image string) string {
	return filepath.Join(c.abs(c.Output.Dir), filepath.Base(image))
}

// CachePath returns the absolute path of the scope cache database.
func (c *Config) CachePath() string {
	return c.abs(c.Cache.Path)
}

// PatchPaths returns every template file in application order. Missing
// patch directories are skipped; missing listed files are an error.
func (c *Config) PatchPaths() ([]string, error) {
	var paths []string
	for _, d := range c.absAll(c.Patches.Dirs) {
		entries, err := os.ReadDir(d)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading patch dir %s: %w", d, err)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), PatchExt) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			paths = append(paths, filepath.Join(d, n))
		}
	}
	for _, f := range c.absAll(c.Patches.Files) {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("patch file: %w", err)
		}
		paths = append(paths, f)
	}
	return paths, nil
}
