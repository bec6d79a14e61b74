// Package auth verifies bearer tokens issued by the external auth service and
// answers the two questions the draft engine asks of a caller: is this the
// league commissioner, and is this the member bound to a seat.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type Role string

const (
	RoleCommissioner Role = "commissioner"
	RoleMember       Role = "member"
	// RoleSystem is held by the engine's own processes, and attached to every
	// call when verification is disabled. It passes every check.
	RoleSystem Role = "system"
)

// Claims are the token claims the engine relies on. Subject is the member id.
type Claims struct {
	LeagueID string `json:"league_id"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

// MemberID parses the subject as a member id.
func (c *Claims) MemberID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a member id", ErrUnauthenticated)
	}
	return id, nil
}

func (c *Claims) inLeague(leagueID uuid.UUID) bool {
	return c.LeagueID == leagueID.String()
}

// Verifier validates HS256 tokens.
type Verifier struct {
	secret []byte
	clock  clockwork.Clock
}

func NewVerifier(secret string, clock clockwork.Clock) *Verifier {
	return &Verifier{secret: []byte(secret), clock: clock}
}

// Verify validates and parses a token
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse token: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	switch claims.Role {
	case RoleCommissioner, RoleMember, RoleSystem:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthenticated, claims.Role)
	}
	return claims, nil
}

// Sign issues a token. The engine never issues tokens in production; the
// seed tool and tests use this to act as the auth service.
func (v *Verifier) Sign(memberID, leagueID uuid.UUID, role Role, ttl time.Duration) (string, error) {
	now := v.clock.Now()
	claims := &Claims{
		LeagueID: leagueID.String(),
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   memberID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// SignSystem issues a RoleSystem token for the engine's own processes.
func (v *Verifier) SignSystem(ttl time.Duration) (string, error) {
	now := v.clock.Now()
	claims := &Claims{
		Role: RoleSystem,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   "system",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type claimsKey struct{}

// WithClaims returns a context carrying the caller's claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext returns the caller's claims, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// RequireCommissioner allows the league commissioner.
func RequireCommissioner(ctx context.Context, leagueID uuid.UUID) error {
	claims, ok := FromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if claims.Role == RoleSystem || (claims.Role == RoleCommissioner && claims.inLeague(leagueID)) {
		return nil
	}
	return fmt.Errorf("%w: commissioner of league %s required", ErrForbidden, leagueID)
}

// RequireLeagueMember allows anyone holding a token for the league.
func RequireLeagueMember(ctx context.Context, leagueID uuid.UUID) error {
	claims, ok := FromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if claims.Role == RoleSystem || claims.inLeague(leagueID) {
		return nil
	}
	return fmt.Errorf("%w: not a member of league %s", ErrForbidden, leagueID)
}

// RequireSeat allows the member bound to a seat and the commissioner, who
// may pick on behalf of any seat. An unbound seat is only reachable by the
// commissioner.
func RequireSeat(ctx context.Context, leagueID uuid.UUID, seatUserID *uuid.UUID) error {
	claims, ok := FromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if claims.Role == RoleSystem || (claims.Role == RoleCommissioner && claims.inLeague(leagueID)) {
		return nil
	}
	if !claims.inLeague(leagueID) || seatUserID == nil {
		return fmt.Errorf("%w: seat belongs to another member", ErrForbidden)
	}
	memberID, err := claims.MemberID()
	if err != nil {
		return err
	}
	if memberID != *seatUserID {
		return fmt.Errorf("%w: seat belongs to another member", ErrForbidden)
	}
	return nil
}
