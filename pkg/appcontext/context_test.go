package appcontext_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warestage/loadsheet-client/pkg/appcontext"
)

func TestToken(t *testing.T) {
	ctx := context.Background()

	_, ok := appcontext.Token(ctx)
	assert.False(t, ok)

	ctx = appcontext.WithToken(ctx, "abc123")
	token, ok := appcontext.Token(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc123", token)
}
