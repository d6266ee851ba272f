package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService       = "doq"
	keyringRegistry      = "registry"
	keyringSourceControl = "source-control"
)

type keyringEntry struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// KeyringProvider reads both pairs from the OS keychain.
type KeyringProvider struct{}

func (p *KeyringProvider) Origin() Origin { return OriginKeyring }

func (p *KeyringProvider) Lookup(ctx context.Context) (Set, error) {
	reg, err := keyringPair(ctx, keyringRegistry)
	if err != nil {
		return Set{}, err
	}
	scm, err := keyringPair(ctx, keyringSourceControl)
	if err != nil {
		return Set{}, err
	}
	return Set{Registry: reg, SourceControl: scm}, nil
}

// StoreKeyring writes the complete pairs of s to the OS keychain.
func StoreKeyring(ctx context.Context, s Set) error {
	for account, p := range map[string]Pair{keyringRegistry: s.Registry, keyringSourceControl: s.SourceControl} {
		if !p.Complete() {
			continue
		}
		data, err := json.Marshal(keyringEntry{Username: p.Username, Secret: p.Secret})
		if err != nil {
			return err
		}
		if err := withContext(ctx, func() error { return keyring.Set(keyringService, account, string(data)) }); err != nil {
			return fmt.Errorf("store %s in keyring: %w", account, err)
		}
	}
	return nil
}

func keyringPair(ctx context.Context, account string) (Pair, error) {
	var raw string
	err := withContext(ctx, func() error {
		var err error
		raw, err = keyring.Get(keyringService, account)
		return err
	})
	if errors.Is(err, keyring.ErrNotFound) {
		return Pair{}, nil
	}
	if err != nil {
		return Pair{}, fmt.Errorf("read %s from keyring: %w", account, err)
	}
	var entry keyringEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Pair{}, fmt.Errorf("decode keyring entry %s: %w", account, err)
	}
	return Pair{Username: entry.Username, Secret: entry.Secret}, nil
}

// withContext runs fn, giving up when ctx ends. Keychain daemons can hang
// on locked sessions.
func withContext(ctx context.Context, fn func() error) error {
	ch := make(chan error, 1)
	go func() {
		ch <- fn()
	}()
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
