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

// Package authz answers the permission step of the asset sagas: the identity token is
// verified as a JWT and the capability is decided by a Rego policy.
package authz

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/innovationmech/assetsaga/pkg/logger"
	"github.com/innovationmech/assetsaga/pkg/saga"
	"github.com/innovationmech/assetsaga/pkg/security/jwt"
	"github.com/innovationmech/assetsaga/pkg/security/opa"
)

// DecisionQuery is the Rego rule consulted for every capability check.
const DecisionQuery = "data.assetsaga.authz.allow"

//go:embed policy/authz.rego
var defaultPolicy string

// ErrInvalidToken wraps every token verification failure.
var ErrInvalidToken = errors.New("invalid identity token")

// Config configures the PermissionValidator.
type Config struct {
	JWT jwt.Config `mapstructure:"jwt"`

	// PolicyFile replaces the embedded policy when set.
	PolicyFile string `mapstructure:"policy_file"`

	// WatchPolicy reloads PolicyFile when it changes on disk.
	WatchPolicy bool `mapstructure:"watch_policy"`
}

// PermissionValidator implements saga.PermissionValidator.
type PermissionValidator struct {
	tokens   *jwt.Validator
	policies *opa.Evaluator
	watcher  *opa.Watcher
}

var _ saga.PermissionValidator = (*PermissionValidator)(nil)

// NewPermissionValidator builds the token validator and prepares the policy.
func NewPermissionValidator(ctx context.Context, cfg Config) (*PermissionValidator, error) {
	tokens, err := jwt.NewValidator(&cfg.JWT)
	if err != nil {
		return nil, err
	}

	name, source := "authz.rego", defaultPolicy
	if cfg.PolicyFile != "" {
		content, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file: %w", err)
		}
		name, source = filepath.Clean(cfg.PolicyFile), string(content)
	}
	policies, err := opa.NewEvaluator(ctx, DecisionQuery, opa.WithModule(name, source))
	if err != nil {
		return nil, err
	}

	v := &PermissionValidator{tokens: tokens, policies: policies}
	if cfg.PolicyFile != "" && cfg.WatchPolicy {
		if v.watcher, err = opa.NewWatcher(policies, name); err != nil {
			return nil, err
		}
		if err := v.watcher.Start(context.WithoutCancel(ctx)); err != nil {
			_ = v.watcher.Stop()
			return nil, err
		}
	}
	return v, nil
}

// Close stops the policy watcher, if any.
func (v *PermissionValidator) Close() error {
	if v.watcher == nil {
		return nil
	}
	return v.watcher.Stop()
}

// Validate reports whether the bearer of identityToken holds capability.
func (v *PermissionValidator) Validate(ctx context.Context, identityToken string, capability saga.Capability) (bool, error) {
	claims, err := v.tokens.Validate(identityToken)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	input := map[string]interface{}{
		"subject":    claims.Subject,
		"username":   claims.Username,
		"roles":      nonNil(claims.Roles),
		"scopes":     nonNil(claims.Scopes),
		"capability": string(capability),
	}
	allowed, err := v.policies.Allowed(ctx, input)
	if err != nil {
		return false, err
	}
	if !allowed {
		logger.GetLogger().Debug("capability denied",
			zap.String("subject", claims.Subject),
			zap.String("capability", string(capability)))
	}
	return allowed, nil
}

// Tokens exposes the token validator, e.g. for issuing tokens from the CLI.
func (v *PermissionValidator) Tokens() *jwt.Validator {
	return v.tokens
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
