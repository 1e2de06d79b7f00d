package habitat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillAfterCloseCreatesNothing(t *testing.T) {
	ctx := context.Background()
	l := NewServiceLocator()
	scope := NewOperationScope("tenant")
	_, err := l.AddOperationScope(scope)
	require.NoError(t, err)
	m, err := NewOperationManager(ctx, "tenant", l)
	require.NoError(t, err)

	created := 0
	h, err := l.Register(Link("example.Tenant").In("tenant").
		ProvidedBy(func(c *CreationContext) (any, error) {
			created++
			return "tenant-a", nil
		}).Build())
	require.NoError(t, err)

	exec := NewExecution()
	op := m.CreateOperation()
	require.NoError(t, op.Resume(exec))

	slot, err := scope.slot(op, h)
	require.NoError(t, err)
	require.NoError(t, op.Close(ctx))

	_, err = scope.fill(slot, op.Identifier(), h, l.newCreationContext(WithExecution(ctx, exec)))
	var closed *OperationClosedError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, op.Identifier(), closed.ID)
	assert.Zero(t, created)
}
