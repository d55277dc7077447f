/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package expr

import "strings"

// Expand turns dotted keys into nested maps, so {"entry.gate": "north_in"} can be read
// as entry.gate. When a dotted key and a plain key collide, e.g. {"a.b": 1, "a": 2},
// the nested value wins.
func Expand(value map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(value))
	for k, v := range value {
		if !strings.Contains(k, ".") {
			if _, ok := result[k]; !ok {
				result[k] = v
			}
			continue
		}
		parts := strings.Split(k, ".")
		node := result
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return result
}
