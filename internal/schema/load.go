package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LockFileName is the snapshot written next to the model definitions
// after generating migrations. It is the baseline the next plan diffs
// against.
const LockFileName = "schema.lock.yaml"

const lockHeader = "# Snapshot of the model set at the last generated migration.\n# Maintained by gfm plan. DO NOT EDIT.\n"

type modelFile struct {
	Models []*Model `yaml:"models"`
}

// LoadDir reads every .yaml/.yml file under dir (the lock file excluded)
// and returns the validated model set
func LoadDir(dir string) (*Set, error) {
	var models []*Model
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if name == LockFileName {
			return nil
		}
		fileModels, err := LoadFile(path)
		if err != nil {
			return err
		}
		models = append(models, fileModels...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load models from %s: %w", dir, err)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no model definitions found in %s", dir)
	}
	return NewSet(models...)
}

// LoadFile reads the models from a single definition file
func LoadFile(path string) ([]*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	models, err := parseModels(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return models, nil
}

func parseModels(data []byte) ([]*Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var file modelFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return file.Models, nil
}

// ReadLock loads the snapshot. A missing file returns an empty set, the
// state before any migration was generated.
func ReadLock(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSet()
		}
		return nil, err
	}
	models, err := parseModels(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewSet(models...)
}

// WriteLock writes the snapshot atomically (temp file + rename)
func WriteLock(path string, set *Set) error {
	models := make([]*Model, len(set.Models))
	copy(models, set.Models)
	sort.Slice(models, func(i, j int) bool {
		return models[i].QualifiedName() < models[j].QualifiedName()
	})

	var buf bytes.Buffer
	buf.WriteString(lockHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(modelFile{Models: models}); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".gfm-lock-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
