/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package breakdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"scriptbreakdown/internal/domain"
	"scriptbreakdown/internal/fountain"
	"scriptbreakdown/internal/log"
)

// RegisterOptions override values otherwise taken from the title page.
type RegisterOptions struct {
	Title   string
	Version string
	Author  string
}

// Registrar records uploaded script files.
type Registrar struct {
	store    Store
	maxBytes int64
	now      func() time.Time
}

// NewRegistrar returns a registrar rejecting files larger than maxBytes;
// zero disables the limit.
func NewRegistrar(store Store, maxBytes int64) *Registrar {
	return &Registrar{store: store, maxBytes: maxBytes, now: time.Now}
}

// Register detects the format, fingerprints the file and saves a new script.
// Fountain scripts are parsed right away so the title page fills in title,
// author and metadata; other formats are stored unparsed.
func (r *Registrar) Register(ctx context.Context, productionID, path string, opts RegisterOptions) (domain.Script, error) {
	l := log.WithOperation(log.WithComponent("breakdown"), "register")
	fi, err := os.Stat(path)
	if err != nil {
		return domain.Script{}, fmt.Errorf("register %s: %w", path, err)
	}
	if r.maxBytes > 0 && fi.Size() > r.maxBytes {
		return domain.Script{}, fmt.Errorf("%w: %d bytes, limit %d", ErrScriptTooLarge, fi.Size(), r.maxBytes)
	}
	format, err := fountain.DetectFormatFile(path)
	if err != nil {
		return domain.Script{}, fmt.Errorf("detect format: %w", err)
	}
	hash, err := fountain.HashFile(path)
	if err != nil {
		return domain.Script{}, fmt.Errorf("hash script: %w", err)
	}
	existing, err := r.store.FindScriptByHash(ctx, productionID, hash)
	switch {
	case err == nil:
		return existing, fmt.Errorf("%w: %s", ErrDuplicateScript, existing.ID)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Script{}, fmt.Errorf("check duplicates: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	s := domain.Script{
		ID:               uuid.NewString(),
		ProductionID:     productionID,
		Title:            opts.Title,
		Version:          opts.Version,
		Author:           opts.Author,
		Format:           format,
		OriginalFilename: filepath.Base(path),
		FilePath:         abs,
		ContentHash:      hash,
		Metadata:         map[string]string{},
		UploadedAt:       r.now().UTC(),
	}
	if format == domain.FormatFountain {
		ps, err := fountain.ParseFile(path)
		if err != nil {
			return domain.Script{}, fmt.Errorf("parse script: %w", err)
		}
		for k, v := range ps.Metadata {
			s.Metadata[k] = v
		}
		if s.Title == "" {
			s.Title = fountain.MetadataValue(ps.Metadata, "Title")
		}
		if s.Author == "" {
			s.Author = fountain.MetadataValue(ps.Metadata, "Author", "Authors")
		}
		s.IsParsed = true
		l.Debug("script parsed", "scenes", len(ps.Scenes), "characters", len(ps.Characters))
	}
	if s.Title == "" {
		s.Title = strings.TrimSuffix(s.OriginalFilename, filepath.Ext(s.OriginalFilename))
	}
	if err := r.store.SaveScript(ctx, s); err != nil {
		return domain.Script{}, fmt.Errorf("save script: %w", err)
	}
	l.Info("script registered", "id", s.ID, "format", s.Format, "parsed", s.IsParsed)
	return s, nil
}
