/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetProduction writes printable sheets and the JSON report.
	PresetProduction PresetName = "production"
	// PresetData writes only the JSON report.
	PresetData PresetName = "data"
)

// BatchOptions controls writing several formats of one report at once.
// Files are named <script-id>.pdf and <script-id>.json inside OutDir.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, json; empty means preset defaults
	OutDir  string
	PDF     PDFOptions
}

// WriteAll writes every requested format and returns the written paths.
func WriteAll(r Report, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	outDir := opt.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	base := r.Script.ID
	if base == "" {
		base = "breakdown"
	}
	var written []string
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			out := filepath.Join(outDir, base+".pdf")
			if err := WritePDF(out, r, opt.PDF); err != nil {
				return written, err
			}
			written = append(written, out)
		case "json":
			out := filepath.Join(outDir, base+".json")
			if err := WriteJSONFile(out, r); err != nil {
				return written, err
			}
			written = append(written, out)
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
	}
	return written, nil
}

// WriteJSONFile writes the validated JSON report to path. A report that
// fails validation leaves no file behind.
func WriteJSONFile(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetData:
		return []string{"json"}
	default:
		return []string{"pdf", "json"}
	}
}
