package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"picoyplaca/internal/config"
	"picoyplaca/internal/constants"
	pkgerrors "picoyplaca/pkg/errors"
)

// Principal is the authenticated caller.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == constants.RoleAdmin
}

// Identity is the name recorded in logs and audit trails.
func (p *Principal) Identity() string {
	if p == nil {
		return "anonymous"
	}
	if p.Email != "" {
		return p.Email
	}
	return p.ID
}

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens issued by the identity service.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}
}

func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired.WithCause(err)
		}
		return nil, errInvalidToken.WithCause(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}

	switch claims.Role {
	case constants.RoleAdmin, constants.RoleUser:
	default:
		return nil, errInvalidToken.WithDetail("role", claims.Role)
	}

	return &Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}, nil
}

// Sign issues a token for p. Only used by tooling and tests; production
// tokens come from the identity service.
func (v *Verifier) Sign(p Principal, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Email: p.Email,
		Name:  p.Name,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

var (
	errMissingToken = pkgerrors.ErrUnauthorized.WithLocalized(
		"Debes iniciar sesión.",
		"Authentication required.",
	)
	errInvalidToken = pkgerrors.ErrUnauthorized.WithLocalized(
		"Token inválido.",
		"Invalid token.",
	)
	errTokenExpired = pkgerrors.ErrUnauthorized.WithLocalized(
		"El token ha expirado.",
		"Token has expired.",
	)
	errInsufficientRole = pkgerrors.ErrForbidden.WithLocalized(
		"No tienes permisos para realizar esta acción.",
		"You do not have permission to perform this action.",
	)
)

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
