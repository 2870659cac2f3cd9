// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/subosito/gotenv"
)

// LoadEnvFile sets the variables declared in the dotenv file at path, without overriding the
// ones already present in the environment. A missing file is an error only when required is true.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}

	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("%w env file %q: %w", ErrParsing, path, err)
	}

	return nil
}
