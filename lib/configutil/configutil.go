// Package configutil reads json5 configuration files with optional local
// overrides.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalPath returns the override file read alongside path, for
// "config.json5" that is "config.local.json5".
func LocalPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// only the braced form is expanded, selectors and passwords may contain a
// bare $.
var envReference = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// readFile decodes path into out, ${VAR} references are expanded from the
// environment first. ok is false when the file does not exist.
func readFile(path string, out any) (ok bool, err error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	expanded := envReference.ReplaceAllFunc(contents, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
	if err := json5.Unmarshal(expanded, out); err != nil {
		return true, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads path and merges its local override over it. It returns
// os.ErrNotExist when neither file exists.
func ReadConfig[T any](path string) (T, error) {
	var out T
	found, err := readFile(path, &out)
	if err != nil {
		return out, err
	}

	var override T
	local := LocalPath(path)
	hasLocal, err := readFile(local, &override)
	if err != nil {
		return out, err
	}
	if hasLocal {
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", local)
	}

	if !found && !hasLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// Find walks up from the working directory to the filesystem root and
// returns the first path where name or its local override exists.
func Find(name string) (string, error) {
	current, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(current, name)
		for _, p := range []string{candidate, LocalPath(candidate)} {
			if _, err := os.Stat(p); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", os.ErrNotExist
		}
		current = parent
	}
}

// ReadRecursively reads the first name found by Find.
func ReadRecursively[T any](name string) (T, error) {
	path, err := Find(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return ReadConfig[T](path)
}
