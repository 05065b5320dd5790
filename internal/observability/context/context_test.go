package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithClinicID(ctx, "42")
	ctx = WithActor(ctx, "7", "SITE_OWNER")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "42", ClinicIDFromContext(ctx))
	id, role := ActorFromContext(ctx)
	assert.Equal(t, "7", id)
	assert.Equal(t, "SITE_OWNER", role)

	// blank values leave the context untouched
	assert.Equal(t, ctx, WithClinicID(ctx, "  "))
}
