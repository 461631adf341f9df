// Copyright 2026 SmartBin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package config

import (
	"reflect"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// yamlConfig converts the configuration into a tree of maps with
// durations formatted as strings ("2s") so the YAML dump can be read back.
func yamlConfig(c Config) interface{} {
	return toYAMLValue(reflect.ValueOf(c))
}

func toYAMLValue(v reflect.Value) interface{} {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}
	switch v.Kind() {
	case reflect.Struct:
		result := make(map[string]interface{})
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			name := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
			if name == "" || name == "-" {
				continue
			}
			result[name] = toYAMLValue(v.Field(i))
		}
		return result
	case reflect.Map:
		result := make(map[string]interface{})
		iter := v.MapRange()
		for iter.Next() {
			result[iter.Key().String()] = toYAMLValue(iter.Value())
		}
		return result
	default:
		return v.Interface()
	}
}
