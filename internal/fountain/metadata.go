/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package fountain

import "strings"

// extractMetadata reads the title-page block: leading "Key: Value" lines,
// blank lines skipped, stopping at the first line without a colon.
func extractMetadata(lines []string) map[string]string {
	meta := map[string]string{}
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			break
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		meta[key] = strings.TrimSpace(value)
	}
	return meta
}

// MetadataValue returns the first non-empty value among keys, matched case-insensitively.
func MetadataValue(meta map[string]string, keys ...string) string {
	for _, want := range keys {
		for k, v := range meta {
			if strings.EqualFold(k, want) && v != "" {
				return v
			}
		}
	}
	return ""
}
