package repository

import (
	"context"
	"fmt"

	"geodrop/internal/models"
)

type CommentRepository struct {
	db DB
}

func NewCommentRepository(db DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment models.Comment) error {
	const query = `
		INSERT INTO comments (
			id, photo_id, user_initials, content, created_at, likes, dislikes
		) VALUES (
			$1, $2, $3, $4, $5, 0, 0
		)
	`

	_, err := r.db.Exec(ctx, query,
		comment.ID,
		comment.PhotoID,
		comment.UserInitials,
		comment.Content,
		comment.CreatedAt,
	)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return ErrPhotoNotFound
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ListByPhoto returns ErrPhotoNotFound for an unknown photo, matching Create.
func (r *CommentRepository) ListByPhoto(ctx context.Context, photoID string) ([]models.Comment, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM photos WHERE id = $1)`, photoID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check photo: %w", err)
	}
	if !exists {
		return nil, ErrPhotoNotFound
	}

	const query = `
		SELECT id, photo_id, user_initials, content, created_at, likes, dislikes
		FROM comments
		WHERE photo_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, photoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		var comment models.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.PhotoID,
			&comment.UserInitials,
			&comment.Content,
			&comment.CreatedAt,
			&comment.Likes,
			&comment.Dislikes,
		); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}
