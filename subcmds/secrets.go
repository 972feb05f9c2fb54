// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bvk/accumbot/binance"
	"github.com/bvk/accumbot/telegram"
)

type Secrets struct {
	Binance  *binance.Credentials `json:"binance"`
	Telegram *telegram.Secrets    `json:"telegram"`
}

func SecretsFromFile(fpath string) (*Secrets, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	s := new(Secrets)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("could not parse secrets file %q: %w", fpath, err)
	}
	return s, nil
}

func (v *Secrets) Check() error {
	if v.Binance == nil {
		return fmt.Errorf("binance api credentials are required")
	}
	if err := v.Binance.Check(); err != nil {
		return err
	}
	if v.Telegram != nil {
		if err := v.Telegram.Check(); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile saves the secrets with owner-only permissions.
func (v *Secrets) WriteFile(fpath string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(fpath, data, 0600); err != nil {
		return fmt.Errorf("could not write secrets file %q: %w", fpath, err)
	}
	return nil
}
