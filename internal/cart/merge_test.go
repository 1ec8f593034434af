package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestMergeSumsMatchingVariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token := guestToken()
	userID := uuid.New()

	require.NoError(t, env.svc.AddLine(ctx, GuestOwner(token), NewVariantKey(1, nil, nil), 2))
	require.NoError(t, env.svc.AddLine(ctx, UserOwner(userID), NewVariantKey(1, nil, nil), 3))

	result, err := env.svc.Merge(ctx, token, userID)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.GuestLines)
	assert.Equal(t, 1, result.Migrated)
	assert.True(t, result.GuestCleared)

	lines := env.lines(t, UserOwner(userID))
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Empty(t, env.rawLines(t, GuestOwner(token)))
}

func TestMergeOverRetiredUserLineStartsFresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token := guestToken()
	userID := uuid.New()
	key := NewVariantKey(1, nil, nil)

	require.NoError(t, env.repo.InsertLine(ctx, UserOwner(userID), key, 3, testNow.Add(-40*24*time.Hour), nil))
	require.NoError(t, env.svc.AddLine(ctx, GuestOwner(token), key, 2))

	result, err := env.svc.Merge(ctx, token, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)

	raw := env.rawLines(t, UserOwner(userID))
	require.Len(t, raw, 1)
	assert.Equal(t, 2, raw[0].Quantity)
	assert.True(t, raw[0].CreatedAt.Equal(testNow))
}

func TestMergeKeepsDistinctVariants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token := guestToken()
	userID := uuid.New()

	require.NoError(t, env.svc.AddLine(ctx, GuestOwner(token), NewVariantKey(2, str("Red"), nil), 1))
	require.NoError(t, env.svc.AddLine(ctx, UserOwner(userID), NewVariantKey(2, str("Blue"), nil), 1))

	_, err := env.svc.Merge(ctx, token, userID)
	require.NoError(t, err)

	lines := env.lines(t, UserOwner(userID))
	require.Len(t, lines, 2)
	colors := map[string]int{}
	for _, line := range lines {
		require.NotNil(t, line.Color)
		colors[*line.Color] = line.Quantity
	}
	assert.Equal(t, map[string]int{"Blue": 1, "Red": 1}, colors)
}

func TestMergeLoginScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token := guestToken()
	userID := uuid.New()
	user := UserOwner(userID)

	require.NoError(t, env.svc.AddLine(ctx, GuestOwner(token), NewVariantKey(5, nil, str("L")), 3))
	require.NoError(t, env.svc.AddLine(ctx, user, NewVariantKey(5, nil, nil), 1))

	_, err := env.svc.Merge(ctx, token, userID)
	require.NoError(t, err)

	lines := env.lines(t, user)
	require.Len(t, lines, 2)
	byKey := map[string]int{}
	for _, line := range lines {
		byKey[line.Key().String()] = line.Quantity
	}
	assert.Equal(t, map[string]int{"5/-/-": 1, "5/-/L": 3}, byKey)

	count, err := env.svc.Count(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Empty(t, env.rawLines(t, GuestOwner(token)))
}

func TestMergeMigratesNearExpiryLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token := guestToken()
	userID := uuid.New()

	expired := testNow.Add(-time.Hour)
	require.NoError(t, env.repo.InsertLine(ctx, GuestOwner(token), NewVariantKey(6, nil, nil), 2, testNow.Add(-40*24*time.Hour), &expired))

	result, err := env.svc.Merge(ctx, token, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)

	lines := env.lines(t, UserOwner(userID))
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestMergeClearsGuestCartDespiteLineFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token := guestToken()
	userID := uuid.New()
	expires := testNow.Add(time.Hour)

	// a corrupt row that cannot be migrated
	require.NoError(t, env.repo.InsertLine(ctx, GuestOwner(token), VariantKey{ProductID: 0}, 1, testNow, &expires))
	require.NoError(t, env.svc.AddLine(ctx, GuestOwner(token), NewVariantKey(3, nil, nil), 2))

	result, err := env.svc.Merge(ctx, token, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.GuestLines)
	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.GuestCleared)
	assert.True(t, pkgerrors.IsCode(result.Err, pkgerrors.CodeValidation))

	assert.Empty(t, env.rawLines(t, GuestOwner(token)))
	assert.Len(t, env.lines(t, UserOwner(userID)), 1)
	assert.Contains(t, env.logs.String(), "guest cart line merge failed")

	assert.Equal(t, float64(1), mergeLineCounter(t, env, "failed"))
	assert.Equal(t, float64(1), mergeLineCounter(t, env, "migrated"))
}

func TestMergeQueuesCartMergedEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	token := guestToken()
	userID := uuid.New()

	require.NoError(t, env.svc.AddLine(ctx, GuestOwner(token), NewVariantKey(1, nil, nil), 1))
	_, err := env.svc.Merge(ctx, token, userID)
	require.NoError(t, err)

	var events []models.OutboxEvent
	require.NoError(t, env.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventCartMerged, events[0].EventType)
	assert.Equal(t, enums.AggregateUserCart, events[0].AggregateType)
	assert.Equal(t, userID, events[0].AggregateID)
	assert.Contains(t, string(events[0].Payload), `"migrated_lines":1`)
}

func TestMergeEmptyGuestCartIsQuiet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.svc.Merge(ctx, guestToken(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, result.GuestLines)
	assert.True(t, result.GuestCleared)

	var count int64
	require.NoError(t, env.db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMergeRejectsInvalidIdentities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Merge(ctx, "", uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = env.svc.Merge(ctx, guestToken(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func mergeLineCounter(t *testing.T, env *testEnv, result string) float64 {
	t.Helper()
	families, err := env.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "storefront_cart_merge_lines_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("merge line counter for %q not found", result)
	return 0
}
