package models

import "time"

const (
	MaxCommentLength  = 700
	MaxInitialsLength = 5
	DefaultInitials   = "Anon"
)

type Comment struct {
	ID           string    `json:"id"`
	PhotoID      string    `json:"photoId"`
	UserInitials string    `json:"userInitials"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	Likes        int       `json:"likes"`
	Dislikes     int       `json:"dislikes"`
}
