// Package auth turns request credentials into caller identities.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erazemk/lostfound/internal/apperr"
	"github.com/erazemk/lostfound/internal/model"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
)

// DemoPrefix marks credentials issued by the demo login.
const DemoPrefix = "demo_"

// Resolver maps a credential to an Identity.
//
// With an empty Secret, tokens are decoded without checking the signature:
// the deployment is expected to sit behind a gateway that has already
// verified them. With a Secret, HMAC signatures and expiry are enforced.
type Resolver struct {
	Secret      string
	DemoEnabled bool
}

// Resolve returns the identity for credential. Every failure is an
// Unauthenticated error wrapping ErrMissingCredential or
// ErrInvalidCredential.
func (r *Resolver) Resolve(credential string) (model.Identity, error) {
	if credential == "" {
		return model.Identity{}, apperr.Unauthenticated("missing credential", ErrMissingCredential)
	}

	if strings.HasPrefix(credential, DemoPrefix) {
		if !r.DemoEnabled {
			return model.Identity{}, apperr.Unauthenticated("demo login is disabled", ErrInvalidCredential)
		}
		return model.Identity{UserID: credential}, nil
	}

	claims, err := r.parse(credential)
	if err != nil {
		return model.Identity{}, apperr.Unauthenticated("invalid credential", fmt.Errorf("%w: %v", ErrInvalidCredential, err))
	}

	id := claims.subject()
	if id == "" {
		return model.Identity{}, apperr.Unauthenticated("credential carries no user id", ErrInvalidCredential)
	}
	return model.Identity{UserID: id, Email: claims.Email}, nil
}

func (r *Resolver) parse(credential string) (*Claims, error) {
	if r.Secret == "" {
		return decodePayload(credential)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(r.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// decodePayload reads the claims from the middle segment of a compact token.
// The header and signature are not looked at, so tokens from providers with
// unusual or missing alg headers still resolve. Numeric ids are accepted.
func decodePayload(credential string) (*Claims, error) {
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return nil, errors.New("token must have three segments")
	}
	raw, err := jwt.NewParser(jwt.WithPaddingAllowed()).DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	claims := &Claims{
		UserID: stringField(fields["user_id"]),
		Email:  stringField(fields["email"]),
	}
	claims.Subject = stringField(fields["sub"])
	if exp, ok := fields["exp"].(json.Number); ok {
		if secs, err := exp.Float64(); err == nil {
			claims.ExpiresAt = jwt.NewNumericDate(time.Unix(int64(secs), 0))
		}
	}
	return claims, nil
}

func stringField(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
