/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// FileConfigLoader loads configuration from a local JSON file.
type FileConfigLoader struct{}

// Load implements ConfigLoader by reading and unmarshaling a JSON file.
func (*FileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	err = json.Unmarshal(data, dst)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
	}

	return nil
}

// INIConfigLoader loads the device's key=value config format. Lines
// starting with # are comments; keys match the json tags of dst.
type INIConfigLoader struct{}

// Load implements ConfigLoader.
func (*INIConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}
	defer func() { _ = f.Close() }()

	values, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse '%s': %w", path, err)
	}

	lookup := func(name string) (string, bool) {
		v, ok := values[name]

		return v, ok
	}

	if err := assignFields(dst, lookup, nil); err != nil {
		return fmt.Errorf("'%s': %w", path, err)
	}

	return nil
}
