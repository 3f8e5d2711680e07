// AngelaMos | 2026
// dto_test.go

package principal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
)

func TestDecodeSessionOwnerWithNestedPlan(t *testing.T) {
	body := []byte(`{
		"user": {
			"id": 42,
			"name": "Dana",
			"email": "dana@example.com",
			"role": "owner",
			"subscription": {
				"id": 7,
				"plan_id": 2,
				"expires_at": "2026-03-01T00:00:00.000000Z",
				"plan": {"id": 2, "name": "Pro", "price": "49.99", "max_properties": 5, "duration_days": 30}
			}
		}
	}`)

	p, err := DecodeSession(body)
	require.NoError(t, err)

	assert.Equal(t, "42", p.ID)
	assert.True(t, p.IsOwner())
	require.NotNil(t, p.Subscription)
	assert.Equal(t, int64(2), p.Subscription.PlanID)
	assert.Equal(t, 5, p.Subscription.MaxProperties)
	require.NotNil(t, p.Subscription.ExpiresAt)
	assert.True(t, p.Subscription.ExpiresAt.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, p.Subscription.Plan)
	assert.InDelta(t, 49.99, p.Subscription.Plan.Price, 0.0001)
	require.NotNil(t, p.Subscription.Plan.DurationDays)
	assert.Equal(t, 30, *p.Subscription.Plan.DurationDays)
}

func TestDecodeSessionFlatSubscription(t *testing.T) {
	body := []byte(`{"user": {"id": "u-1", "role": "owner",
		"subscription": {"plan_id": "3", "max_properties": 10, "expires_at": null}}}`)

	p, err := DecodeSession(body)
	require.NoError(t, err)

	require.NotNil(t, p.Subscription)
	assert.Equal(t, int64(3), p.Subscription.PlanID)
	assert.Equal(t, 10, p.Subscription.MaxProperties)
	assert.Nil(t, p.Subscription.ExpiresAt)
}

func TestDecodeSessionPlanLimitWinsOverFlatLimit(t *testing.T) {
	body := []byte(`{"user": {"id": 1, "role": "owner",
		"subscription": {"max_properties": 10, "plan": {"id": 4, "max_properties": 2}}}}`)

	p, err := DecodeSession(body)
	require.NoError(t, err)

	assert.Equal(t, 2, p.Subscription.MaxProperties)
	assert.Equal(t, int64(4), p.Subscription.PlanID)
}

func TestDecodeSessionMissingLimitDefaultsToZero(t *testing.T) {
	body := []byte(`{"user": {"id": 1, "role": "owner", "subscription": {"plan_id": 1}}}`)

	p, err := DecodeSession(body)
	require.NoError(t, err)

	assert.Equal(t, 0, p.Subscription.MaxProperties)
}

func TestDecodeSessionLaravelTimestamp(t *testing.T) {
	body := []byte(`{"user": {"id": 1, "role": "owner",
		"subscription": {"expires_at": "2024-01-01 00:00:00"}}}`)

	p, err := DecodeSession(body)
	require.NoError(t, err)

	require.NotNil(t, p.Subscription.ExpiresAt)
	assert.Equal(t, 2024, p.Subscription.ExpiresAt.Year())
}

func TestDecodeSessionNoUser(t *testing.T) {
	for _, body := range []string{`{}`, `{"user": null}`} {
		_, err := DecodeSession([]byte(body))
		assert.ErrorIs(t, err, core.ErrNoSession, body)
	}
}

func TestDecodeSessionMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>login</html>`},
		{name: "user not an object", body: `{"user": "admin"}`},
		{name: "missing id", body: `{"user": {"role": "admin"}}`},
		{name: "unknown role", body: `{"user": {"id": 1, "role": "superuser"}}`},
		{name: "missing role", body: `{"user": {"id": 1}}`},
		{name: "bad expiry", body: `{"user": {"id": 1, "role": "owner", "subscription": {"expires_at": "soon"}}}`},
		{name: "negative limit", body: `{"user": {"id": 1, "role": "owner", "subscription": {"max_properties": -1}}}`},
		{name: "id is an object", body: `{"user": {"id": {"v": 1}, "role": "owner"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeSession([]byte(tt.body))
			assert.Nil(t, p)
			assert.ErrorIs(t, err, core.ErrMalformedResponse)
		})
	}
}

func TestPrincipalRoleHelpers(t *testing.T) {
	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.IsAdmin())
	assert.False(t, nilPrincipal.IsOwner())

	assert.True(t, (&Principal{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&Principal{Role: RoleCustomer}).IsOwner())
}
