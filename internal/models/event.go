package models

import "time"

type EntityType string

const (
	EntityPhotos   EntityType = "photos"
	EntityComments EntityType = "comments"
)

type ChangeAction string

const (
	ActionInsert ChangeAction = "insert"
	ActionUpdate ChangeAction = "update"
	ActionDelete ChangeAction = "delete"
)

// ChangeEvent is pushed to realtime subscribers. Photo or Comment is set
// according to Entity; deletes only carry the id.
type ChangeEvent struct {
	Entity    EntityType   `json:"entity"`
	Action    ChangeAction `json:"action"`
	ID        string       `json:"id"`
	Photo     *PhotoView   `json:"photo,omitempty"`
	Comment   *Comment     `json:"comment,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// PhotoView is the wire shape of a photo.
type PhotoView struct {
	ID              string     `json:"id"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	ZoneID          string     `json:"zoneId"`
	CreatedAt       time.Time  `json:"createdAt"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	Likes           int        `json:"likes"`
	Dislikes        int        `json:"dislikes"`
	Views           int64      `json:"views"`
	CreatedBy       string     `json:"createdBy"`
	LastInteraction *time.Time `json:"lastInteraction,omitempty"`
	ImageURL        string     `json:"imageUrl,omitempty"`
	ThumbnailURL    string     `json:"thumbnailUrl,omitempty"`
}

// View converts p to its wire shape. urlFor may be nil.
func (p Photo) View(urlFor func(key string, thumbnail bool) string) PhotoView {
	v := PhotoView{
		ID:              p.ID,
		Latitude:        p.Latitude,
		Longitude:       p.Longitude,
		ZoneID:          p.ZoneID,
		CreatedAt:       p.CreatedAt,
		ExpiresAt:       p.ExpiresAt,
		Likes:           p.Likes,
		Dislikes:        p.Dislikes,
		Views:           p.Views,
		CreatedBy:       p.CreatedBy,
		LastInteraction: p.LastInteraction,
	}
	if urlFor != nil {
		if p.Assets.ImageKey != "" {
			v.ImageURL = urlFor(p.Assets.ImageKey, false)
		}
		if p.Assets.ThumbnailKey != "" {
			v.ThumbnailURL = urlFor(p.Assets.ThumbnailKey, true)
		}
	}
	return v
}
