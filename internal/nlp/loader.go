/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package nlp

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"scriptbreakdown/internal/lexicon"
	"scriptbreakdown/internal/log"
)

// ErrModelUnavailable is returned when the pipeline cannot be initialised.
var ErrModelUnavailable = errors.New("nlp model unavailable")

// State is the lifecycle of a Loader.
type State int

const (
	Uninitialized State = iota
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return "uninitialized"
}

// Loader owns the one expensive pipeline setup of a process. The first Load
// runs the constructor; later calls return the same pipeline or the same
// error. Safe for concurrent use.
type Loader struct {
	build func() (Pipeline, error)

	once  sync.Once
	mu    sync.RWMutex
	state State
	p     Pipeline
	err   error
}

// NewLoader returns a loader that builds the pipeline with build on first use.
func NewLoader(build func() (Pipeline, error)) *Loader {
	return &Loader{build: build}
}

// NewProseLoader returns a loader for the prose-backed English pipeline.
func NewProseLoader(tables *lexicon.Tables, model string) *Loader {
	return NewLoader(func() (Pipeline, error) {
		p, err := NewProse(tables, model)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Static returns a loader that is already loaded with p.
func Static(p Pipeline) *Loader {
	l := &Loader{state: Loaded, p: p}
	l.once.Do(func() {})
	return l
}

// Load returns the shared pipeline, building it on the first call. Failures
// wrap ErrModelUnavailable.
func (l *Loader) Load() (Pipeline, error) {
	l.once.Do(func() {
		lg := log.WithComponent("nlp")
		start := time.Now()
		p, err := l.build()
		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.state, l.err = Failed, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
			lg.Error("pipeline load failed", "err", err)
			return
		}
		l.state, l.p = Loaded, p
		lg.Info("pipeline loaded", "took", time.Since(start))
	})
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.p, l.err
}

// State reports the lifecycle state without triggering a load.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}
