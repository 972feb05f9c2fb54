// Copyright (c) 2023 BVK Chaitanya

package binance

import "fmt"

type Credentials struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

func (v *Credentials) Check() error {
	if len(v.Key) == 0 || len(v.Secret) == 0 {
		return fmt.Errorf("api key and secret cannot be empty")
	}
	return nil
}
