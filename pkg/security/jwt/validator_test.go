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

package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-asset-sagas"

func newTestValidator(t *testing.T, mutate func(*Config)) *Validator {
	t.Helper()
	cfg := &Config{Secret: testSecret, Issuer: "asset-saga", Audience: "assets"}
	if mutate != nil {
		mutate(cfg)
	}
	v, err := NewValidator(cfg)
	require.NoError(t, err)
	return v
}

func validClaims() *ClaimsBuilder {
	return NewClaimsBuilder().
		WithSubject("user-1").
		WithUsername("alice").
		WithRoles("asset-admin").
		WithScopes("asset:update").
		WithIssuer("asset-saga").
		WithAudience("assets").
		WithExpiresAt(time.Now().Add(time.Hour))
}

func TestNewValidator(t *testing.T) {
	_, err := NewValidator(nil)
	assert.Error(t, err)

	_, err = NewValidator(&Config{})
	assert.Error(t, err)

	v, err := NewValidator(&Config{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, []string{"HS256", "HS384", "HS512"}, v.config.AllowedAlgorithms)
	assert.Equal(t, 5*time.Second, v.config.LeewayDuration)
}

func TestValidator_Validate(t *testing.T) {
	v := newTestValidator(t, nil)

	token, err := v.Sign(validClaims().Build())
	require.NoError(t, err)

	claims, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.HasRole("asset-admin"))
	assert.False(t, claims.HasRole("viewer"))
	assert.True(t, claims.HasScope("asset:update"))
	assert.False(t, claims.HasScope("asset:delete"))
}

func TestValidator_Rejections(t *testing.T) {
	v := newTestValidator(t, nil)

	tests := []struct {
		name   string
		claims *Claims
		want   error
	}{
		{"expired", validClaims().WithExpiresAt(time.Now().Add(-time.Hour)).Build(), ErrTokenExpired},
		{"not yet valid", validClaims().WithNotBefore(time.Now().Add(time.Hour)).Build(), ErrTokenNotYetValid},
		{"wrong issuer", validClaims().WithIssuer("someone-else").Build(), ErrInvalidIssuer},
		{"wrong audience", validClaims().WithAudience("billing").Build(), ErrInvalidAudience},
		{"missing subject", validClaims().WithSubject("").Build(), ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := v.Sign(tt.claims)
			require.NoError(t, err)

			_, err = v.Validate(token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidator_RejectsMissingExpiry(t *testing.T) {
	v := newTestValidator(t, nil)
	claims := validClaims().Build()
	claims.ExpiresAt = nil

	token, err := v.Sign(claims)
	require.NoError(t, err)

	_, err = v.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidator_RejectsForeignSignature(t *testing.T) {
	v := newTestValidator(t, nil)
	other := newTestValidator(t, func(c *Config) { c.Secret = "another-secret" })

	token, err := other.Sign(validClaims().Build())
	require.NoError(t, err)

	_, err = v.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidator_RejectsDisallowedAlgorithm(t *testing.T) {
	v := newTestValidator(t, func(c *Config) { c.AllowedAlgorithms = []string{"HS512"} })

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims().Build()).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidator_Leeway(t *testing.T) {
	v := newTestValidator(t, func(c *Config) { c.LeewayDuration = time.Minute })

	token, err := v.Sign(validClaims().WithExpiresAt(time.Now().Add(-10 * time.Second)).Build())
	require.NoError(t, err)

	_, err = v.Validate(token)
	assert.NoError(t, err)
}
