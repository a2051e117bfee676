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

import (
	"strings"

	"scriptbreakdown/internal/domain"
)

// headingPrefixes are checked in order; the longer INT/EXT form comes first
// so that "INT/EXT." is not read as "INT".
var headingPrefixes = []struct {
	prefix string
	marker domain.IntExt
}{
	{"INT/EXT.", domain.IntExtBoth},
	{"I/E.", domain.IntExtBoth},
	{"INT.", domain.IntExtInterior},
	{"EXT.", domain.IntExtExterior},
}

// ExtractSceneHeading splits a heading line into its interior/exterior
// marker, location and time of day. Location and time are nil when absent.
// A line without a recognised prefix yields (IntExtUnknown, nil, nil).
func ExtractSceneHeading(line string) (domain.IntExt, *string, *string) {
	line = strings.TrimSpace(line)
	upper := strings.ToUpper(line)
	marker := domain.IntExtUnknown
	rest := ""
	for _, p := range headingPrefixes {
		if strings.HasPrefix(upper, p.prefix) {
			marker = p.marker
			rest = strings.TrimSpace(line[len(p.prefix):])
			break
		}
	}
	if marker == domain.IntExtUnknown {
		return marker, nil, nil
	}
	parts := strings.Split(rest, " - ")
	location := optional(parts[0])
	if len(parts) == 1 {
		return marker, location, nil
	}
	return marker, location, optional(strings.Join(parts[1:], " - "))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
