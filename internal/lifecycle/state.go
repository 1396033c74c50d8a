package lifecycle

import (
	"time"

	"geodrop/internal/models"
)

// State is derived from expires_at, never stored.
type State int

const (
	StateInfinite State = iota
	StateActive
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateInfinite:
		return "infinite"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

func StateOf(photo models.Photo, now time.Time) State {
	if photo.ExpiresAt == nil {
		return StateInfinite
	}
	if now.Before(*photo.ExpiresAt) {
		return StateActive
	}
	return StateExpired
}

// ApplyLike bumps likes and, for a finite photo, pushes expiry out by one
// lifespan. Infinite photos stay infinite.
func ApplyLike(photo models.Photo, lifespan time.Duration, now time.Time) models.PhotoPatch {
	likes := photo.Likes + 1
	patch := models.PhotoPatch{Likes: &likes, LastInteraction: &now}
	if photo.ExpiresAt != nil {
		expires := photo.ExpiresAt.Add(lifespan)
		patch.ExpiresAt = &expires
	}
	return patch
}

// ApplyDislike bumps dislikes and, for a finite photo, pulls expiry in by one
// lifespan. The result may already be in the past.
func ApplyDislike(photo models.Photo, lifespan time.Duration, now time.Time) models.PhotoPatch {
	dislikes := photo.Dislikes + 1
	patch := models.PhotoPatch{Dislikes: &dislikes, LastInteraction: &now}
	if photo.ExpiresAt != nil {
		expires := photo.ExpiresAt.Add(-lifespan)
		patch.ExpiresAt = &expires
	}
	return patch
}
