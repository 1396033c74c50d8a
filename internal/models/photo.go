package models

import "time"

const DefaultCreatedBy = "Anonymous"

// AssetRefs points at the blobs backing a photo marker.
type AssetRefs struct {
	ImageKey     string
	ThumbnailKey string
}

// Photo is a map marker. ExpiresAt == nil means the photo has infinite life.
type Photo struct {
	ID              string
	Latitude        float64
	Longitude       float64
	ZoneID          string
	CreatedAt       time.Time
	ExpiresAt       *time.Time
	Likes           int
	Dislikes        int
	Views           int64
	CreatedBy       string
	LastInteraction *time.Time
	Assets          AssetRefs
	Version         int64
}

// PhotoPatch is a partial update. Nil fields are left untouched, except
// ClearExpiry which forces expires_at to NULL.
type PhotoPatch struct {
	Likes           *int
	Dislikes        *int
	ExpiresAt       *time.Time
	ClearExpiry     bool
	LastInteraction *time.Time
}

type PhotoOrder string

const (
	OrderRecent PhotoOrder = "recent"
	OrderOldest PhotoOrder = "oldest"
)
