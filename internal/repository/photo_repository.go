package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"geodrop/internal/models"
)

const photoColumns = `id, latitude, longitude, zone_id, created_at, expires_at, likes, dislikes, views,
		       created_by, last_interaction, image_key, thumbnail_key, version`

// Tx is the set of photo operations that must run inside one transaction so a
// zone rebalance or a counter update is observed all-or-nothing.
type Tx interface {
	LockZone(ctx context.Context, zoneID string) error
	GetPhoto(ctx context.Context, id string) (models.Photo, error)
	InsertPhoto(ctx context.Context, photo models.Photo) error
	CountZone(ctx context.Context, zoneID string, now time.Time) (int, error)
	RebalanceZone(ctx context.Context, zoneID string, expiresAt time.Time, now time.Time) ([]models.Photo, error)
	RevertZone(ctx context.Context, zoneID string, now time.Time) ([]models.Photo, error)
	UpdatePhoto(ctx context.Context, id string, patch models.PhotoPatch, version int64) (models.Photo, error)
	RecordInteraction(ctx context.Context, interaction models.Interaction) error
	ActorBalance(ctx context.Context, actorID string) (models.ActorBalance, error)
	DeletePhotos(ctx context.Context, ids []string) ([]models.Photo, error)
	DeleteExpired(ctx context.Context, ids []string, now time.Time) ([]models.Photo, error)
}

type PhotoRepository struct {
	db DB
	photoQueries
}

func NewPhotoRepository(db DB) *PhotoRepository {
	return &PhotoRepository{db: db, photoQueries: photoQueries{q: db}}
}

// WithinTx runs fn in a read-committed transaction, committing only if fn
// returns nil.
func (r *PhotoRepository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(photoQueries{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PhotoRepository) List(ctx context.Context, limit int, order models.PhotoOrder) ([]models.Photo, error) {
	direction := "DESC"
	if order == models.OrderOldest {
		direction = "ASC"
	}
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		ORDER BY created_at ` + direction + `, id ` + direction + `
		LIMIT $1
	`
	return r.queryPhotos(ctx, query, limit)
}

// ListExpired returns finite photos whose expiry is at or before now.
func (r *PhotoRepository) ListExpired(ctx context.Context, now time.Time) ([]models.Photo, error) {
	const query = `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at ASC
	`
	return r.queryPhotos(ctx, query, now)
}

func (r *PhotoRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	const query = `UPDATE photos SET views = views + 1 WHERE id = $1 RETURNING views`

	var views int64
	if err := r.q.QueryRow(ctx, query, id).Scan(&views); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrPhotoNotFound
		}
		return 0, err
	}
	return views, nil
}

type photoQueries struct {
	q querier
}

func (p photoQueries) LockZone(ctx context.Context, zoneID string) error {
	_, err := p.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, zoneID)
	if err != nil {
		return fmt.Errorf("lock zone %s: %w", zoneID, err)
	}
	return nil
}

func (p photoQueries) GetPhoto(ctx context.Context, id string) (models.Photo, error) {
	const query = `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`

	photo, err := scanPhoto(p.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Photo{}, ErrPhotoNotFound
		}
		return models.Photo{}, err
	}
	return photo, nil
}

func (p photoQueries) InsertPhoto(ctx context.Context, photo models.Photo) error {
	const query = `
		INSERT INTO photos (
			id, latitude, longitude, zone_id, created_at, expires_at, likes, dislikes, views,
			created_by, last_interaction, image_key, thumbnail_key, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14
		)
	`

	_, err := p.q.Exec(ctx, query,
		photo.ID,
		photo.Latitude,
		photo.Longitude,
		photo.ZoneID,
		photo.CreatedAt,
		photo.ExpiresAt,
		photo.Likes,
		photo.Dislikes,
		photo.Views,
		photo.CreatedBy,
		photo.LastInteraction,
		photo.Assets.ImageKey,
		photo.Assets.ThumbnailKey,
		photo.Version,
	)
	return err
}

// CountZone returns the zone population: photos that have not expired yet.
func (p photoQueries) CountZone(ctx context.Context, zoneID string, now time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM photos
		WHERE zone_id = $1 AND (expires_at IS NULL OR expires_at > $2)
	`
	var count int
	if err := p.q.QueryRow(ctx, query, zoneID, now).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// RebalanceZone resets counters and applies one expiry to every live photo in
// the zone. Expired photos are left for the reaper.
func (p photoQueries) RebalanceZone(ctx context.Context, zoneID string, expiresAt time.Time, now time.Time) ([]models.Photo, error) {
	const query = `
		UPDATE photos
		SET likes = 0,
		    dislikes = 0,
		    expires_at = $2,
		    version = version + 1
		WHERE zone_id = $1 AND (expires_at IS NULL OR expires_at > $3)
		RETURNING ` + photoColumns
	return p.queryPhotos(ctx, query, zoneID, expiresAt, now)
}

// RevertZone gives every live finite photo in the zone infinite life again.
// Counters are kept.
func (p photoQueries) RevertZone(ctx context.Context, zoneID string, now time.Time) ([]models.Photo, error) {
	const query = `
		UPDATE photos
		SET expires_at = NULL,
		    version = version + 1
		WHERE zone_id = $1 AND expires_at IS NOT NULL AND expires_at > $2
		RETURNING ` + photoColumns
	return p.queryPhotos(ctx, query, zoneID, now)
}

// UpdatePhoto applies patch only if the stored version still matches.
func (p photoQueries) UpdatePhoto(ctx context.Context, id string, patch models.PhotoPatch, version int64) (models.Photo, error) {
	const query = `
		UPDATE photos
		SET likes = COALESCE($3::integer, likes),
		    dislikes = COALESCE($4::integer, dislikes),
		    expires_at = CASE WHEN $5::boolean THEN NULL ELSE COALESCE($6::timestamptz, expires_at) END,
		    last_interaction = COALESCE($7::timestamptz, last_interaction),
		    version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING ` + photoColumns

	photo, err := scanPhoto(p.q.QueryRow(ctx, query,
		id,
		version,
		patch.Likes,
		patch.Dislikes,
		patch.ClearExpiry,
		patch.ExpiresAt,
		patch.LastInteraction,
	))
	if err == nil {
		return photo, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Photo{}, err
	}

	var exists bool
	if err := p.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM photos WHERE id = $1)`, id).Scan(&exists); err != nil {
		return models.Photo{}, err
	}
	if !exists {
		return models.Photo{}, ErrPhotoNotFound
	}
	return models.Photo{}, ErrVersionConflict
}

// RecordInteraction stores the actor's single interaction with a photo and
// bumps the actor's global tally.
func (p photoQueries) RecordInteraction(ctx context.Context, interaction models.Interaction) error {
	const insert = `
		INSERT INTO interactions (actor_id, photo_id, kind, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := p.q.Exec(ctx, insert,
		interaction.ActorID,
		interaction.PhotoID,
		interaction.Kind,
		interaction.CreatedAt,
	); err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return ErrDuplicateInteraction
		case pgForeignKeyViolation:
			return ErrPhotoNotFound
		}
		return fmt.Errorf("insert interaction: %w", err)
	}

	likes, dislikes := 0, 0
	if interaction.Kind == models.InteractionLike {
		likes = 1
	} else {
		dislikes = 1
	}

	const upsert = `
		INSERT INTO actor_stats (actor_id, likes, dislikes, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (actor_id)
		DO UPDATE SET
			likes = actor_stats.likes + EXCLUDED.likes,
			dislikes = actor_stats.dislikes + EXCLUDED.dislikes,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := p.q.Exec(ctx, upsert, interaction.ActorID, likes, dislikes, interaction.CreatedAt); err != nil {
		return fmt.Errorf("update actor stats: %w", err)
	}
	return nil
}

func (p photoQueries) ActorBalance(ctx context.Context, actorID string) (models.ActorBalance, error) {
	const query = `SELECT likes, dislikes FROM actor_stats WHERE actor_id = $1`

	var balance models.ActorBalance
	if err := p.q.QueryRow(ctx, query, actorID).Scan(&balance.Likes, &balance.Dislikes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ActorBalance{}, nil
		}
		return models.ActorBalance{}, err
	}
	return balance, nil
}

// DeletePhotos removes photos and their comments, returning the rows deleted.
func (p photoQueries) DeletePhotos(ctx context.Context, ids []string) ([]models.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := p.q.Exec(ctx, `DELETE FROM comments WHERE photo_id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("delete comments: %w", err)
	}
	const query = `DELETE FROM photos WHERE id = ANY($1) RETURNING ` + photoColumns
	return p.queryPhotos(ctx, query, ids)
}

// DeleteExpired is DeletePhotos restricted to rows that are still expired at
// delete time, so overlapping sweeps never delete the same row twice.
func (p photoQueries) DeleteExpired(ctx context.Context, ids []string, now time.Time) ([]models.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const lock = `
		SELECT id FROM photos
		WHERE id = ANY($1) AND expires_at IS NOT NULL AND expires_at <= $2
		FOR UPDATE
	`
	rows, err := p.q.Query(ctx, lock, ids, now)
	if err != nil {
		return nil, fmt.Errorf("lock expired: %w", err)
	}
	expired, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("lock expired: %w", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}

	return p.DeletePhotos(ctx, expired)
}

func (p photoQueries) queryPhotos(ctx context.Context, query string, args ...any) ([]models.Photo, error) {
	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func scanPhoto(row pgx.Row) (models.Photo, error) {
	var photo models.Photo
	err := row.Scan(
		&photo.ID,
		&photo.Latitude,
		&photo.Longitude,
		&photo.ZoneID,
		&photo.CreatedAt,
		&photo.ExpiresAt,
		&photo.Likes,
		&photo.Dislikes,
		&photo.Views,
		&photo.CreatedBy,
		&photo.LastInteraction,
		&photo.Assets.ImageKey,
		&photo.Assets.ThumbnailKey,
		&photo.Version,
	)
	return photo, err
}
