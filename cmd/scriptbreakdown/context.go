/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scriptbreakdown/internal/backend"
	"scriptbreakdown/internal/breakdown"
	"scriptbreakdown/internal/config"
	"scriptbreakdown/internal/crash"
	"scriptbreakdown/internal/lexicon"
	applog "scriptbreakdown/internal/log"
	"scriptbreakdown/internal/nlp"
	"scriptbreakdown/internal/storage"
	"scriptbreakdown/internal/telemetry"
)

// scriptStore is what the commands need from either driver.
type scriptStore interface {
	breakdown.Store
	Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error)
	Close() error
}

type commandContext struct {
	configFlag string
	session    *crash.Session

	configOnce sync.Once
	config     config.AppConfig
	configErr  error

	// test hooks; nil means build from config
	loader *nlp.Loader
	store  scriptStore
}

func newCommandContext(session *crash.Session) *commandContext {
	return &commandContext{session: session}
}

func (c *commandContext) ensureConfig() (config.AppConfig, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.configFlag)
		var cfg config.AppConfig
		var err error
		if path != "" {
			if err = config.LoadDotEnv(); err == nil {
				cfg, err = config.LoadFrom(path)
			}
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			c.configErr = err
			return
		}
		applog.Init(applog.Options{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			AddSource: cfg.Logging.Source,
			File:      cfg.Logging.File,
		})
		telemetry.NewDefault(telemetry.FromConfig(cfg.Telemetry))
		if c.session != nil && c.session.ReportDir == "" && cfg.Storage.SQLitePath != "" {
			c.session.ReportDir = filepath.Join(filepath.Dir(cfg.Storage.SQLitePath), "crashes")
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// openStore opens the configured driver. The caller closes it.
func (c *commandContext) openStore(ctx context.Context) (scriptStore, error) {
	if c.store != nil {
		return nopCloser{c.store}, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	l := applog.WithComponent("cli")
	switch strings.ToLower(cfg.Storage.Driver) {
	case "", config.DriverSQLite:
		s, recovered, err := storage.OpenOrRecover(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		if recovered {
			l.Warn("database was unreadable and has been recreated", slog.String("path", s.Path()))
		}
		return s, nil
	case config.DriverPostgres:
		dsn, err := cfg.Storage.PostgresURL()
		if err != nil {
			return nil, err
		}
		s, err := backend.OpenPG(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (c *commandContext) tables() (*lexicon.Tables, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return lexicon.Load(cfg.NLP.LexiconPath)
}

func (c *commandContext) nlpLoader(tables *lexicon.Tables) *nlp.Loader {
	if c.loader != nil {
		return c.loader
	}
	cfg, _ := c.ensureConfig()
	return nlp.NewProseLoader(tables, cfg.NLP.Model)
}

type nopCloser struct{ scriptStore }

func (nopCloser) Close() error { return nil }

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
