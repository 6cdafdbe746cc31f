// Package cache fingerprints the inputs of an application so unchanged
// applications can be skipped on the next run.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zeebo/blake3"
)

// FingerprintFile is the file name written inside the cache directory.
const FingerprintFile = "fingerprint.json"

// Fingerprint records the BLAKE3 digest of every input file and of the
// settings that shape the output.
type Fingerprint struct {
	Version   string            `json:"version"`
	Settings  string            `json:"settings"`
	Inputs    map[string]string `json:"inputs"`
	Digest    string            `json:"digest"`
	Timestamp time.Time         `json:"timestamp"`
}

// Matches reports whether two fingerprints describe the same inputs.
func (f *Fingerprint) Matches(other *Fingerprint) bool {
	return f != nil && other != nil && f.Digest == other.Digest
}

// Cache stores fingerprints in one directory per application.
type Cache struct {
	dir     string
	enabled bool
}

// New creates a cache rooted at dir. A disabled cache never hits and never
// writes.
func New(dir string, enabled bool) *Cache {
	return &Cache{dir: dir, enabled: enabled}
}

// Enabled reports whether the cache is active.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// HashFile computes a BLAKE3 hash of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Compute fingerprints the named inputs under workDir. Entries may be files
// or directories; directories are walked. Missing inputs are recorded with
// an empty hash so that their later appearance changes the digest.
func Compute(workDir string, inputs []string, version, settings string) (*Fingerprint, error) {
	fp := &Fingerprint{
		Version:   version,
		Settings:  settings,
		Inputs:    make(map[string]string),
		Timestamp: time.Now().UTC(),
	}
	for _, in := range inputs {
		root := filepath.Join(workDir, in)
		info, err := os.Stat(root)
		if errors.Is(err, fs.ErrNotExist) {
			fp.Inputs[filepath.ToSlash(in)] = ""
			continue
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			h, err := HashFile(root)
			if err != nil {
				return nil, err
			}
			fp.Inputs[filepath.ToSlash(in)] = h
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, _ := filepath.Rel(workDir, path)
			h, err := HashFile(path)
			if err != nil {
				return err
			}
			fp.Inputs[filepath.ToSlash(rel)] = h
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	fp.Digest = digest(fp)
	return fp, nil
}

func digest(fp *Fingerprint) string {
	names := make([]string, 0, len(fp.Inputs))
	for name := range fp.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	h := blake3.New()
	_, _ = io.WriteString(h, fp.Version+"\x00"+fp.Settings+"\x00")
	for _, name := range names {
		_, _ = io.WriteString(h, name+"\x00"+fp.Inputs[name]+"\x00")
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Load reads the stored fingerprint. It returns false when there is none or
// the cache is disabled.
func (c *Cache) Load() (*Fingerprint, bool) {
	if !c.enabled {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(c.dir, FingerprintFile))
	if err != nil {
		return nil, false
	}
	var fp Fingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, false
	}
	return &fp, true
}

// Fresh reports whether fp matches the stored fingerprint.
func (c *Cache) Fresh(fp *Fingerprint) bool {
	stored, ok := c.Load()
	return ok && stored.Matches(fp)
}

// Store writes fp, creating the directory as needed.
func (c *Cache) Store(fp *Fingerprint) error {
	if !c.enabled {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fp, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, FingerprintFile), data, 0o600)
}

// Invalidate removes the stored fingerprint.
func (c *Cache) Invalidate() error {
	if !c.enabled {
		return nil
	}
	err := os.Remove(filepath.Join(c.dir, FingerprintFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
