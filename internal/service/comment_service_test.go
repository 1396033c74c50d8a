package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodrop/internal/models"
	"geodrop/internal/repository"
)

type stubComments struct {
	created []models.Comment
	err     error
	missing map[string]bool
}

func (s *stubComments) Create(_ context.Context, c models.Comment) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, c)
	return nil
}

func (s *stubComments) ListByPhoto(_ context.Context, photoID string) ([]models.Comment, error) {
	if s.missing[photoID] {
		return nil, repository.ErrPhotoNotFound
	}
	var out []models.Comment
	for _, c := range s.created {
		if c.PhotoID == photoID {
			out = append(out, c)
		}
	}
	return out, nil
}

type stubPublisher struct {
	events []models.ChangeEvent
}

func (p *stubPublisher) Publish(_ context.Context, e models.ChangeEvent) error {
	p.events = append(p.events, e)
	return nil
}

func TestAddCommentNormalizesAndPublishes(t *testing.T) {
	store, pub := &stubComments{}, &stubPublisher{}
	s := NewCommentService(store, pub, zerolog.Nop())

	c, err := s.Add(context.Background(), "p1", "  ", "  nice view  ")
	require.NoError(t, err)

	assert.Equal(t, "Anon", c.UserInitials)
	assert.Equal(t, "nice view", c.Content)
	assert.NotEmpty(t, c.ID)
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EntityComments, pub.events[0].Entity)
	assert.Equal(t, models.ActionInsert, pub.events[0].Action)
	assert.Equal(t, c.ID, pub.events[0].Comment.ID)

	listed, err := s.List(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestAddCommentLengthBounds(t *testing.T) {
	s := NewCommentService(&stubComments{}, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := s.Add(ctx, "p1", "AB", " \n ")
	assert.ErrorIs(t, err, ErrInvalidComment)

	_, err = s.Add(ctx, "p1", "AB", strings.Repeat("é", 701))
	assert.ErrorIs(t, err, ErrInvalidComment)

	_, err = s.Add(ctx, "p1", "AB", strings.Repeat("é", 700))
	assert.NoError(t, err)
}

func TestAddCommentOnMissingPhoto(t *testing.T) {
	pub := &stubPublisher{}
	s := NewCommentService(&stubComments{err: repository.ErrPhotoNotFound}, pub, zerolog.Nop())

	_, err := s.Add(context.Background(), "nope", "AB", "hi")
	assert.True(t, errors.Is(err, repository.ErrPhotoNotFound))
	assert.Empty(t, pub.events)
}

func TestListCommentsOnMissingPhoto(t *testing.T) {
	s := NewCommentService(&stubComments{missing: map[string]bool{"nope": true}}, nil, zerolog.Nop())

	_, err := s.List(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrPhotoNotFound)
}

func TestNormalizeInitials(t *testing.T) {
	assert.Equal(t, "Anon", NormalizeInitials(""))
	assert.Equal(t, "JD", NormalizeInitials(" JD "))
	assert.Equal(t, "ABCDE", NormalizeInitials("ABCDEFG"))
	assert.Equal(t, "ÅÉÎÕÜ", NormalizeInitials("ÅÉÎÕÜX"))
}
