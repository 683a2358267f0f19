// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package opa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/innovationmech/assetsaga/pkg/logger"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a policy file into an Evaluator whenever it changes on disk.
// A file that no longer compiles is logged and the previous policy stays in effect.
type Watcher struct {
	evaluator *Evaluator
	path      string
	debounce  time.Duration
	fsWatcher *fsnotify.Watcher

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	reloads int
}

// NewWatcher watches path, which must already be loaded into evaluator under the same name.
func NewWatcher(evaluator *Evaluator, path string) (*Watcher, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("opa: evaluator cannot be nil")
	}
	if path == "" {
		return nil, fmt.Errorf("opa: policy path cannot be empty")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	// Editors replace files by rename, so the directory is watched rather than the file.
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return &Watcher{
		evaluator: evaluator,
		path:      filepath.Clean(path),
		debounce:  defaultDebounce,
		fsWatcher: fsWatcher,
	}, nil
}

// Start begins processing file events until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return fmt.Errorf("opa: watcher is already running")
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.watch(ctx)
	return nil
}

// Stop ends the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return w.fsWatcher.Close()
}

// Reloads reports how many times the policy was successfully reloaded.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.done)
	// Writes arrive in bursts, so reloads fire once the file has been quiet for the debounce period.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			if err := w.reload(ctx); err != nil {
				logger.GetLogger().Warn("policy reload failed", zap.String("path", w.path), zap.Error(err))
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.GetLogger().Warn("policy watcher error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) reload(ctx context.Context) error {
	content, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := w.evaluator.LoadPolicy(ctx, w.path, string(content)); err != nil {
		return err
	}
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	logger.GetLogger().Info("policy reloaded", zap.String("path", w.path))
	return nil
}
