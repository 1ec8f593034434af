package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

func TestDispatchRunsEachAction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := GuestOwner(guestToken())
	dispatcher, err := NewDispatcher(env.svc, metrics.NewCartMetrics(nil))
	require.NoError(t, err)

	key := NewVariantKey(env.createProduct(t, "SKU-1", "Tee", "12.50"), nil, str("M"))

	res, err := dispatcher.Dispatch(ctx, owner, AddAction{Key: key, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CartCount)

	res, err = dispatcher.Dispatch(ctx, owner, UpdateQuantityAction{Key: key, Update: StepQuantity(1)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.CartCount)

	res, err = dispatcher.Dispatch(ctx, owner, ListAction{})
	require.NoError(t, err)
	require.NotNil(t, res.View)
	assert.Equal(t, "37.5", res.View.Totals.Total.String())

	res, err = dispatcher.Dispatch(ctx, owner, CountAction{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.CartCount)

	res, err = dispatcher.Dispatch(ctx, owner, RemoveAction{Key: key})
	require.NoError(t, err)
	assert.Zero(t, res.CartCount)

	_, err = dispatcher.Dispatch(ctx, owner, RemoveAction{Key: key})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	res, err = dispatcher.Dispatch(ctx, owner, ClearAction{})
	require.NoError(t, err)
	assert.Equal(t, "cart cleared", res.Message)

	_, err = dispatcher.Dispatch(ctx, owner, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDispatchCountsOutcomes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := GuestOwner(guestToken())
	dispatcher, err := NewDispatcher(env.svc, env.metrics)
	require.NoError(t, err)

	_, err = dispatcher.Dispatch(ctx, owner, AddAction{Key: NewVariantKey(1, nil, nil), Quantity: 1})
	require.NoError(t, err)
	_, err = dispatcher.Dispatch(ctx, owner, RemoveAction{Key: NewVariantKey(99, nil, nil)})
	require.Error(t, err)

	families, err := env.registry.Gather()
	require.NoError(t, err)
	outcomes := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "storefront_cart_operations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, label := range metric.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}
			outcomes[labels["action"]+":"+labels["outcome"]] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), outcomes["add:ok"])
	assert.Equal(t, float64(1), outcomes["remove:NOT_FOUND"])
}

func TestNewDispatcherRequiresService(t *testing.T) {
	_, err := NewDispatcher(nil, nil)
	require.Error(t, err)
}
