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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"scriptbreakdown/internal/domain"
)

// ErrUnsupportedFormat is returned for script formats that cannot be parsed.
var ErrUnsupportedFormat = errors.New("unsupported script format")

const sniffChars = 1000

// DetectFormat decides the format from the file extension, falling back to
// sniffing the first characters of head.
func DetectFormat(name string, head []byte) domain.ScriptFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".fountain", ".spmd":
		return domain.FormatFountain
	case ".pdf":
		return domain.FormatPDF
	case ".fdx":
		return domain.FormatFinalDraft
	}
	text := Decode(head)
	if r := []rune(text); len(r) > sniffChars {
		text = string(r[:sniffChars])
	}
	switch {
	case strings.Contains(text, "<?xml") && strings.Contains(text, "<FinalDraft"):
		return domain.FormatFinalDraft
	case (strings.Contains(text, "INT.") || strings.Contains(text, "EXT.")) &&
		(strings.Contains(text, "FADE IN:") || strings.Contains(text, "CUT TO:")):
		return domain.FormatFountain
	}
	return domain.FormatPlainText
}

// DetectFormatFile detects the format of the file at path.
func DetectFormatFile(path string) (domain.ScriptFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	// 4 bytes per character covers the sniff window in any UTF encoding.
	head := make([]byte, sniffChars*4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return DetectFormat(path, head[:n]), nil
}

// Parser parses one script format.
type Parser interface {
	ParseFile(path string) (*domain.ParsedScript, error)
}

type fountainParser struct{}

func (fountainParser) ParseFile(path string) (*domain.ParsedScript, error) { return ParseFile(path) }

// NewParser returns the parser for format, or ErrUnsupportedFormat.
func NewParser(format domain.ScriptFormat) (Parser, error) {
	if format == domain.FormatFountain {
		return fountainParser{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}
