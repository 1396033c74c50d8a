package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"geodrop/internal/ids"
	"geodrop/internal/models"
)

var ErrInvalidComment = errors.New("comment must be between 1 and 700 characters")

type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	ListByPhoto(ctx context.Context, photoID string) ([]models.Comment, error)
}

type Publisher interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
}

type CommentService struct {
	comments  CommentStore
	publisher Publisher
	now       func() time.Time
	log       zerolog.Logger
}

func NewCommentService(comments CommentStore, publisher Publisher, log zerolog.Logger) *CommentService {
	return &CommentService{
		comments:  comments,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With().Str("component", "comments").Logger(),
	}
}

func (s *CommentService) Add(ctx context.Context, photoID, initials, content string) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > models.MaxCommentLength {
		return models.Comment{}, ErrInvalidComment
	}

	comment := models.Comment{
		ID:           ids.New(),
		PhotoID:      photoID,
		UserInitials: NormalizeInitials(initials),
		Content:      content,
		CreatedAt:    s.now(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return models.Comment{}, err
	}

	if s.publisher != nil {
		event := models.ChangeEvent{
			Entity:    models.EntityComments,
			Action:    models.ActionInsert,
			ID:        comment.ID,
			Comment:   &comment,
			Timestamp: comment.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.log.Warn().Err(err).Str("comment_id", comment.ID).Msg("publish comment failed")
		}
	}
	return comment, nil
}

// List fails with repository.ErrPhotoNotFound for an unknown photo, as Add does.
func (s *CommentService) List(ctx context.Context, photoID string) ([]models.Comment, error) {
	return s.comments.ListByPhoto(ctx, photoID)
}

// NormalizeInitials trims, defaults to "Anon" and keeps at most five runes.
func NormalizeInitials(initials string) string {
	initials = strings.TrimSpace(initials)
	if initials == "" {
		return models.DefaultInitials
	}
	if utf8.RuneCountInString(initials) > models.MaxInitialsLength {
		initials = string([]rune(initials)[:models.MaxInitialsLength])
	}
	return initials
}
