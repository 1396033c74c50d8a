package models

import "time"

type InteractionKind string

const (
	InteractionLike    InteractionKind = "like"
	InteractionDislike InteractionKind = "dislike"
)

// Interaction records the single like or dislike an actor gave a photo.
type Interaction struct {
	ActorID   string
	PhotoID   string
	Kind      InteractionKind
	CreatedAt time.Time
}

// ActorBalance is an actor's global like/dislike tally.
type ActorBalance struct {
	Likes    int
	Dislikes int
}

func (b ActorBalance) CanDislike() bool {
	return b.Likes > b.Dislikes
}
