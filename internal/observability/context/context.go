package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type clinicIDKey struct{}
type actorKey struct{}

type actor struct {
	id   string
	role string
}

// WithRequestID stores the request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithClinicID tags the context with the clinic being operated on.
func WithClinicID(ctx context.Context, clinicID string) context.Context {
	clinicID = strings.TrimSpace(clinicID)
	if clinicID == "" {
		return ctx
	}
	return context.WithValue(ctx, clinicIDKey{}, clinicID)
}

func ClinicIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(clinicIDKey{}).(string)
	return value
}

// WithActor records who is performing the operation.
func WithActor(ctx context.Context, actorID, role string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		id:   strings.TrimSpace(actorID),
		role: strings.TrimSpace(role),
	})
}

// ActorFromContext returns the actor id and role.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.id, value.role
}
