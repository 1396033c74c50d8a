package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodrop/internal/models"
)

func TestStateOf(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	assert.Equal(t, StateInfinite, StateOf(models.Photo{}, now))
	assert.Equal(t, StateActive, StateOf(models.Photo{ExpiresAt: &later}, now))
	assert.Equal(t, StateExpired, StateOf(models.Photo{ExpiresAt: &earlier}, now))
	assert.Equal(t, StateExpired, StateOf(models.Photo{ExpiresAt: &now}, now), "expiry instant counts as expired")
	assert.Equal(t, "active", StateActive.String())
}

func TestApplyLike(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(48 * time.Hour)

	finite := ApplyLike(models.Photo{Likes: 2, ExpiresAt: &expires}, week, now)
	require.NotNil(t, finite.ExpiresAt)
	assert.Equal(t, expires.Add(week), *finite.ExpiresAt)
	assert.Equal(t, 3, *finite.Likes)
	assert.Nil(t, finite.Dislikes)
	assert.Equal(t, now, *finite.LastInteraction)

	infinite := ApplyLike(models.Photo{Likes: 0}, week, now)
	assert.Nil(t, infinite.ExpiresAt)
	assert.False(t, infinite.ClearExpiry)
	assert.Equal(t, 1, *infinite.Likes)
}

func TestApplyDislike(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(48 * time.Hour)

	finite := ApplyDislike(models.Photo{Dislikes: 1, ExpiresAt: &expires}, week, now)
	require.NotNil(t, finite.ExpiresAt)
	assert.Equal(t, expires.Add(-week), *finite.ExpiresAt)
	assert.True(t, finite.ExpiresAt.Before(now), "a dislike can push a photo straight into expiry")
	assert.Equal(t, 2, *finite.Dislikes)
	assert.Nil(t, finite.Likes)

	infinite := ApplyDislike(models.Photo{}, week, now)
	assert.Nil(t, infinite.ExpiresAt)
	assert.Equal(t, 1, *infinite.Dislikes)
}
