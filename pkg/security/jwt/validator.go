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

// Package jwt validates the identity tokens presented to the asset sagas.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates that the token is invalid.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("jwt: token has expired")
	// ErrTokenNotYetValid indicates that the token is not yet valid.
	ErrTokenNotYetValid = errors.New("jwt: token not yet valid")
	// ErrInvalidIssuer indicates that the token issuer does not match the expected issuer.
	ErrInvalidIssuer = errors.New("jwt: invalid issuer")
	// ErrInvalidAudience indicates that the token audience does not match the expected audience.
	ErrInvalidAudience = errors.New("jwt: invalid audience")
)

// Config holds the JWT validator configuration.
type Config struct {
	// Secret is the HMAC secret key.
	Secret string `json:"-" yaml:"secret" mapstructure:"secret"`

	// AllowedAlgorithms is the list of allowed HMAC algorithms.
	AllowedAlgorithms []string `json:"allowed_algorithms" yaml:"allowed_algorithms" mapstructure:"allowed_algorithms"`

	// Issuer is the expected token issuer. Empty skips the check.
	Issuer string `json:"issuer,omitempty" yaml:"issuer,omitempty" mapstructure:"issuer"`

	// Audience is the expected token audience. Empty skips the check.
	Audience string `json:"audience,omitempty" yaml:"audience,omitempty" mapstructure:"audience"`

	// LeewayDuration is the time leeway for validating time-based claims.
	LeewayDuration time.Duration `json:"leeway_duration" yaml:"leeway_duration" mapstructure:"leeway_duration"`
}

// SetDefaults sets default values for the configuration.
func (c *Config) SetDefaults() {
	if len(c.AllowedAlgorithms) == 0 {
		c.AllowedAlgorithms = []string{"HS256", "HS384", "HS512"}
	}
	if c.LeewayDuration <= 0 {
		c.LeewayDuration = 5 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("jwt: secret must be configured")
	}
	return nil
}

// Validator verifies HMAC-signed tokens and decodes them into Claims.
type Validator struct {
	config *Config
	parser *jwt.Parser
}

// NewValidator creates a new JWT validator with the given configuration.
func NewValidator(config *Config) (*Validator, error) {
	if config == nil {
		return nil, fmt.Errorf("jwt: config cannot be nil")
	}
	cfg := *config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("jwt: invalid config: %w", err)
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(cfg.LeewayDuration),
		jwt.WithValidMethods(cfg.AllowedAlgorithms),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Validator{config: &cfg, parser: jwt.NewParser(opts...)}, nil
}

// Validate parses tokenString, verifies its signature and registered claims and
// returns the decoded claims.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, fmt.Errorf("%w: %v", ErrInvalidIssuer, err)
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, fmt.Errorf("%w: %v", ErrInvalidAudience, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Sign issues a token for claims with the configured secret. It exists for the CLI
// and tests; the sagas only validate.
func (v *Validator) Sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(v.config.AllowedAlgorithms[0]), claims)
	return token.SignedString([]byte(v.config.Secret))
}

func (v *Validator) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
	}
	return []byte(v.config.Secret), nil
}
