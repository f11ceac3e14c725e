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
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/fieldagent/pkg/logger"
	"github.com/carverauto/fieldagent/pkg/models"
)

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")

	errUnsupportedField = errors.New("unsupported field type")

	durationType = reflect.TypeOf(models.Duration(0))
)

// lookupFunc returns the raw value for a json tag name, if present.
type lookupFunc func(name string) (string, bool)

// EnvConfigLoader overlays configuration from environment variables. The
// variable name is the prefix plus the upper-cased json tag, so
// FIELDAGENT_REPORT_INTERVAL sets report_interval.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

// NewEnvConfigLoader creates a new environment variable config loader.
func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	return &EnvConfigLoader{
		logger: log,
		prefix: prefix,
	}
}

// Load implements ConfigLoader. Unset variables leave dst untouched.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	lookup := func(name string) (string, bool) {
		v, ok := os.LookupEnv(e.envName(name))
		if !ok || v == "" {
			return "", false
		}

		return v, true
	}

	if err := assignFields(dst, lookup, e.logger); err != nil {
		return fmt.Errorf("environment overlay: %w", err)
	}

	return nil
}

func (e *EnvConfigLoader) envName(field string) string {
	return e.prefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}

// assignFields walks the json-tagged fields of the struct behind dst and
// sets each one lookup knows about.
func assignFields(dst interface{}, lookup lookupFunc, log logger.Logger) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		jsonTag := t.Field(i).Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		name := strings.Split(jsonTag, ",")[0]

		raw, ok := lookup(name)
		if !ok {
			continue
		}

		if err := setField(field, strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		if log != nil {
			log.Debug().Str("key", name).Msg("Loaded configuration value")
		}
	}

	return nil
}

func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		return setDurationField(field, raw)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := parseBool(raw)
		if err != nil {
			return err
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value: %w", err)
		}

		field.SetInt(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid float value: %w", err)
		}

		field.SetFloat(f)
	case reflect.Slice:
		return setSliceField(field, raw)
	case reflect.Ptr:
		elem := reflect.New(field.Type().Elem())
		if err := setField(elem.Elem(), raw); err != nil {
			return err
		}

		field.Set(elem)
	default:
		if err := json.Unmarshal([]byte(raw), field.Addr().Interface()); err != nil {
			return fmt.Errorf("%w %s: %w", errUnsupportedField, field.Kind(), err)
		}
	}

	return nil
}

// setDurationField accepts a bare number of seconds or a Go duration string.
func setDurationField(field reflect.Value, raw string) error {
	secs, err := strconv.ParseFloat(raw, 64)
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	}

	if err == nil {
		d, convErr := models.SecondsToDuration(secs)
		if convErr != nil {
			return convErr
		}

		field.SetInt(int64(d))

		return nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}

	field.SetInt(int64(d))

	return nil
}

func setSliceField(field reflect.Value, raw string) error {
	if field.Type().Elem().Kind() != reflect.String {
		if err := json.Unmarshal([]byte(raw), field.Addr().Interface()); err != nil {
			return fmt.Errorf("invalid slice value: %w", err)
		}

		return nil
	}

	values := strings.Split(raw, ",")
	slice := reflect.MakeSlice(field.Type(), 0, len(values))

	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			slice = reflect.Append(slice, reflect.ValueOf(v).Convert(field.Type().Elem()))
		}
	}

	field.Set(slice)

	return nil
}

// parseBool extends strconv.ParseBool with the yes/no/on/off spellings
// common in INI files.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid boolean value: %w", err)
	}

	return b, nil
}
