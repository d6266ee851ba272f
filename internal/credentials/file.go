package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mamatnurahmat/devops-tools/internal/logger"
)

// Keys of the flat credential file. The remote service stores the same
// object as a JSON string.
const (
	keyRegistryUser   = "DOCKERHUB_USER"
	keyRegistrySecret = "DOCKERHUB_PASSWORD"
	keyGitUser        = "GIT_USER"
	keyGitSecret      = "GIT_PASSWORD"
)

// FileProvider reads ~/.doq/auth.json. A missing file is an empty source;
// a malformed one is logged and treated as empty.
type FileProvider struct {
	Path string
}

func (p *FileProvider) Origin() Origin { return OriginFile }

func (p *FileProvider) Lookup(_ context.Context) (Set, error) {
	fields, err := readFile(p.Path)
	if err != nil {
		logger.Warn().Err(err).Str("path", p.Path).Msg("ignoring credential file")
		return Set{}, nil
	}
	return fromFields(fields), nil
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if len(data) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fields, nil
}

func fromFields(fields map[string]string) Set {
	return Set{
		Registry:      Pair{Username: fields[keyRegistryUser], Secret: fields[keyRegistrySecret]},
		SourceControl: Pair{Username: fields[keyGitUser], Secret: fields[keyGitSecret]},
	}
}

func toFields(s Set, into map[string]string) map[string]string {
	if into == nil {
		into = map[string]string{}
	}
	if s.Registry.Complete() {
		into[keyRegistryUser] = s.Registry.Username
		into[keyRegistrySecret] = s.Registry.Secret
	}
	if s.SourceControl.Complete() {
		into[keyGitUser] = s.SourceControl.Username
		into[keyGitSecret] = s.SourceControl.Secret
	}
	return into
}

// Save merges the complete pairs of s into the credential file at path.
// Unrelated keys already in the file are kept. The file is written with
// owner-only permissions.
func Save(path string, s Set) error {
	existing, err := readFile(path)
	if err != nil {
		// An unreadable file is replaced rather than merged.
		existing = map[string]string{}
	}
	fields := toFields(s, existing)

	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}

// Load returns the raw fields of the credential file, for pushing them to
// the remote service unchanged.
func Load(path string) (map[string]string, error) {
	return readFile(path)
}
