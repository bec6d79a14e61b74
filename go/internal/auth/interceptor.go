package auth

import (
	"context"
	"strings"
	"time"

	"connectrpc.com/connect"
)

const bearerPrefix = "Bearer "

// NewInterceptor verifies the Authorization header of every unary call and
// puts the claims on the context. With disabled set every call runs as
// RoleSystem.
func NewInterceptor(v *Verifier, disabled bool) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				return next(ctx, req)
			}
			if disabled {
				return next(WithClaims(ctx, &Claims{Role: RoleSystem}), req)
			}

			header := req.Header().Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				return nil, connect.NewError(connect.CodeUnauthenticated, ErrUnauthenticated)
			}
			claims, err := v.Verify(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			return next(WithClaims(ctx, claims), req)
		}
	}
}

// NewClientInterceptor attaches a bearer token to outgoing calls.
func NewClientInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient && token != "" {
				req.Header().Set("Authorization", bearerPrefix+token)
			}
			return next(ctx, req)
		}
	}
}

// NewSystemClientInterceptor signs a short-lived RoleSystem token for every
// outgoing call.
func NewSystemClientInterceptor(v *Verifier) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				token, err := v.SignSystem(time.Minute)
				if err != nil {
					return nil, err
				}
				req.Header().Set("Authorization", bearerPrefix+token)
			}
			return next(ctx, req)
		}
	}
}
