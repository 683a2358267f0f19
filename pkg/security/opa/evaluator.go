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

// Package opa evaluates Rego policies in-process.
package opa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
)

// ErrNoPolicies is returned when an evaluator is built without any module.
var ErrNoPolicies = errors.New("opa: no policies loaded")

// Option configures an Evaluator.
type Option func(*Evaluator) error

// WithModule adds a Rego module under name.
func WithModule(name, source string) Option {
	return func(e *Evaluator) error {
		e.modules[name] = source
		return nil
	}
}

// WithPolicyDir adds every .rego file in dir.
func WithPolicyDir(dir string) Option {
	return func(e *Evaluator) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to read policy directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rego") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read policy %s: %w", path, err)
			}
			e.modules[path] = string(content)
		}
		return nil
	}
}

// WithData seeds the policy data document.
func WithData(data map[string]interface{}) Option {
	return func(e *Evaluator) error {
		e.store = inmem.NewFromObject(data)
		return nil
	}
}

// Evaluator holds a prepared query over a fixed set of modules.
type Evaluator struct {
	query   string
	store   storage.Store
	modules map[string]string

	mu       sync.RWMutex
	prepared rego.PreparedEvalQuery
}

// NewEvaluator compiles the modules and prepares query, e.g. "data.assetsaga.authz.allow".
func NewEvaluator(ctx context.Context, query string, opts ...Option) (*Evaluator, error) {
	if query == "" {
		return nil, fmt.Errorf("opa: query cannot be empty")
	}
	e := &Evaluator{
		query:   query,
		store:   inmem.New(),
		modules: make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if len(e.modules) == 0 {
		return nil, ErrNoPolicies
	}
	if err := e.prepare(ctx, e.modules); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadPolicy adds or replaces a module and re-prepares the query. The previous
// query stays in effect if the new set fails to compile.
func (e *Evaluator) LoadPolicy(ctx context.Context, name, source string) error {
	e.mu.RLock()
	modules := make(map[string]string, len(e.modules)+1)
	for k, v := range e.modules {
		modules[k] = v
	}
	e.mu.RUnlock()
	modules[name] = source

	if err := e.prepare(ctx, modules); err != nil {
		return err
	}
	return nil
}

// Allowed evaluates the query and reports whether it yielded exactly true.
// An undefined decision is a denial.
func (e *Evaluator) Allowed(ctx context.Context, input interface{}) (bool, error) {
	rs, err := e.eval(ctx, input)
	if err != nil {
		return false, err
	}
	return rs.Allowed(), nil
}

// Decision returns the raw value of the query, or nil when undefined.
func (e *Evaluator) Decision(ctx context.Context, input interface{}) (interface{}, error) {
	rs, err := e.eval(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}
	return rs[0].Expressions[0].Value, nil
}

func (e *Evaluator) eval(ctx context.Context, input interface{}) (rego.ResultSet, error) {
	e.mu.RLock()
	pq := e.prepared
	e.mu.RUnlock()

	rs, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	return rs, nil
}

func (e *Evaluator) prepare(ctx context.Context, modules map[string]string) error {
	parsed := make(map[string]*ast.Module, len(modules))
	names := make([]string, 0, len(modules))
	for name, source := range modules {
		m, err := ast.ParseModule(name, source)
		if err != nil {
			return fmt.Errorf("failed to parse policy %s: %w", name, err)
		}
		parsed[name] = m
		names = append(names, name)
	}
	compiler := ast.NewCompiler()
	if compiler.Compile(parsed); compiler.Failed() {
		return fmt.Errorf("failed to compile policies: %v", compiler.Errors)
	}

	sort.Strings(names)
	opts := []func(*rego.Rego){
		rego.Query(e.query),
		rego.Store(e.store),
	}
	for _, name := range names {
		opts = append(opts, rego.Module(name, modules[name]))
	}
	pq, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.mu.Lock()
	e.modules = modules
	e.prepared = pq
	e.mu.Unlock()
	return nil
}
