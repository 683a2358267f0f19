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
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims extends jwt.RegisteredClaims with the caller's roles and scopes.
type Claims struct {
	jwt.RegisteredClaims
	Username    string   `json:"username,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

// HasRole checks if the claims contain a specific role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasScope checks if the claims contain a specific scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ClaimsBuilder builds Claims fluently.
type ClaimsBuilder struct {
	claims *Claims
}

// NewClaimsBuilder starts a builder with IssuedAt set to now.
func NewClaimsBuilder() *ClaimsBuilder {
	return &ClaimsBuilder{claims: &Claims{
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
	}}
}

// WithSubject sets the subject claim.
func (b *ClaimsBuilder) WithSubject(subject string) *ClaimsBuilder {
	b.claims.Subject = subject
	return b
}

// WithUsername sets the username claim.
func (b *ClaimsBuilder) WithUsername(username string) *ClaimsBuilder {
	b.claims.Username = username
	return b
}

// WithRoles adds roles.
func (b *ClaimsBuilder) WithRoles(roles ...string) *ClaimsBuilder {
	b.claims.Roles = append(b.claims.Roles, roles...)
	return b
}

// WithScopes adds scopes.
func (b *ClaimsBuilder) WithScopes(scopes ...string) *ClaimsBuilder {
	b.claims.Scopes = append(b.claims.Scopes, scopes...)
	return b
}

// WithIssuer sets the issuer claim.
func (b *ClaimsBuilder) WithIssuer(issuer string) *ClaimsBuilder {
	b.claims.Issuer = issuer
	return b
}

// WithAudience sets the audience claim.
func (b *ClaimsBuilder) WithAudience(audience ...string) *ClaimsBuilder {
	b.claims.Audience = audience
	return b
}

// WithExpiresAt sets the expiry claim.
func (b *ClaimsBuilder) WithExpiresAt(expiresAt time.Time) *ClaimsBuilder {
	b.claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	return b
}

// WithNotBefore sets the not-before claim.
func (b *ClaimsBuilder) WithNotBefore(notBefore time.Time) *ClaimsBuilder {
	b.claims.NotBefore = jwt.NewNumericDate(notBefore)
	return b
}

// Build returns the claims.
func (b *ClaimsBuilder) Build() *Claims {
	return b.claims
}
