// Package auth verifies session JWTs from the hosted auth provider, either
// against its JWKS endpoint or with the project's shared HS256 secret.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	defaultLeeway = 30 * time.Second
)

// Options selects how tokens are verified. Secret takes precedence over
// JWKS. Audience is optional.
type Options struct {
	Issuer   string
	Audience string
	JWKSURL  string
	Secret   string
}

// Verifier validates access tokens and extracts Claims.
type Verifier struct {
	issuer   string
	audience string
	keyfunc  jwt.Keyfunc
	parser   *jwt.Parser
}

// NewVerifier builds a verifier. With a Secret it accepts HS256 tokens
// signed with it; otherwise it fetches keys from JWKSURL, defaulting to
// <issuer>.well-known/jwks.json.
func NewVerifier(opts Options) (*Verifier, error) {
	issuer := strings.TrimSpace(opts.Issuer)
	normalizedIssuer := normalizeIssuer(issuer)
	if normalizedIssuer == "" && opts.Secret == "" {
		return nil, errors.New("issuer must be set")
	}

	var (
		kf      jwt.Keyfunc
		methods []string
	)
	if opts.Secret != "" {
		secret := []byte(opts.Secret)
		kf = func(*jwt.Token) (any, error) { return secret, nil }
		methods = []string{jwt.SigningMethodHS256.Name}
	} else {
		jwksURL := opts.JWKSURL
		if jwksURL == "" {
			jwksURL = normalizedIssuer + ".well-known/jwks.json"
		}
		keyProvider, err := keyfunc.NewDefault([]string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
		}
		kf = keyProvider.Keyfunc
		methods = []string{
			jwt.SigningMethodRS256.Name, jwt.SigningMethodRS384.Name, jwt.SigningMethodRS512.Name,
			jwt.SigningMethodES256.Name,
		}
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithLeeway(defaultLeeway),
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	return &Verifier{
		issuer:   issuer,
		audience: opts.Audience,
		keyfunc:  kf,
		parser:   jwt.NewParser(parserOpts...),
	}, nil
}

// Verify parses and validates a JWT, returning extracted claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := v.parser.Parse(tokenString, v.keyfunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	claims := &Claims{
		Subject:   readString(mapClaims, "sub"),
		Email:     readString(mapClaims, "email"),
		Name:      readName(mapClaims),
		Role:      readString(mapClaims, "role"),
		Issuer:    readString(mapClaims, "iss"),
		Audience:  readAudience(mapClaims["aud"]),
		ExpiresAt: readExpiry(mapClaims["exp"]),
		Raw:       mapClaims,
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing sub")
	}
	return claims, nil
}

// normalizeIssuer returns the issuer with a trailing slash for building the
// JWKS URL.
func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return ""
	}
	if !strings.HasSuffix(issuer, "/") {
		issuer += "/"
	}
	return issuer
}

func readString(claims map[string]any, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

// readName prefers user_metadata.full_name, then name.
func readName(claims jwt.MapClaims) string {
	if meta, ok := claims["user_metadata"].(map[string]any); ok {
		if name := readString(meta, "full_name"); name != "" {
			return name
		}
		if name := readString(meta, "name"); name != "" {
			return name
		}
	}
	return readString(claims, "name")
}

func readAudience(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}

func readExpiry(raw any) time.Time {
	switch v := raw.(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return time.Unix(i, 0)
		}
	case int64:
		return time.Unix(v, 0)
	}
	return time.Time{}
}

// AuthDisabled reports whether auth should be skipped for local development.
func AuthDisabled() bool {
	if strings.EqualFold(os.Getenv("AUTH_DISABLED"), "true") {
		if strings.EqualFold(os.Getenv("ENV"), "local") || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "" {
			log.Warn().Msg("auth disabled via AUTH_DISABLED for local development")
			return true
		}
	}
	return false
}
