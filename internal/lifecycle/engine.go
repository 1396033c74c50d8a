// Package lifecycle owns the rules that decide how long a photo stays on the
// map: zone population thresholds, like/dislike expiry adjustments and the
// bulk rebalance/revert transitions.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"geodrop/internal/config"
	"geodrop/internal/geo"
	"geodrop/internal/ids"
	"geodrop/internal/metrics"
	"geodrop/internal/models"
	"geodrop/internal/repository"
)

var (
	ErrPhotoExpired      = errors.New("photo expired")
	ErrAlreadyInteracted = errors.New("already interacted with this photo")
	ErrDislikeNotAllowed = errors.New("like some photos before you can dislike")
	ErrConflict          = errors.New("conflicting update, try again")
	ErrActorRequired     = errors.New("actor id required")
)

// Store runs photo operations transactionally.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error
}

// AssetRemover deletes the blobs behind a photo.
type AssetRemover interface {
	RemoveAssets(ctx context.Context, refs models.AssetRefs) error
}

// Publisher receives change events after a successful commit.
type Publisher interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
}

type Option func(*Engine)

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithPresenter sets how photos are rendered into events, typically to
// attach asset URLs.
func WithPresenter(present func(models.Photo) models.PhotoView) Option {
	return func(e *Engine) { e.present = present }
}

// WithAssetRemover makes DeletePhotos remove the photos' assets after the
// rows are gone. Failures are logged, never returned.
func WithAssetRemover(r AssetRemover) Option {
	return func(e *Engine) { e.assets = r }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	store     Store
	zones     geo.Index
	cfg       config.LifecycleConfig
	publisher Publisher
	assets    AssetRemover
	present   func(models.Photo) models.PhotoView
	now       func() time.Time
	log       zerolog.Logger
}

func NewEngine(store Store, cfg config.LifecycleConfig, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		zones:   geo.NewIndex(cfg.ZoneResolution),
		cfg:     cfg,
		present: func(p models.Photo) models.PhotoView { return p.View(nil) },
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.With().Str("component", "lifecycle").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ZoneOf(lat, lon float64) geo.ZoneID {
	return e.zones.ZoneOf(lat, lon)
}

type NewPhoto struct {
	// ID is generated when empty.
	ID        string
	Latitude  float64
	Longitude float64
	CreatedBy string
	Assets    models.AssetRefs
}

func NormalizeCreatedBy(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return models.DefaultCreatedBy
	}
	return label
}

// CreatePhoto stores a new photo with infinite life, then rebalances the zone
// if the new population reaches the threshold. Zone writes are serialized by
// a per-zone lock held for the whole transaction.
func (e *Engine) CreatePhoto(ctx context.Context, in NewPhoto) (models.Photo, error) {
	if err := geo.Validate(in.Latitude, in.Longitude); err != nil {
		return models.Photo{}, err
	}

	now := e.now()
	photo := models.Photo{
		ID:        in.ID,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		ZoneID:    string(e.zones.ZoneOf(in.Latitude, in.Longitude)),
		CreatedAt: now,
		CreatedBy: NormalizeCreatedBy(in.CreatedBy),
		Assets:    in.Assets,
		Version:   1,
	}
	if photo.ID == "" {
		photo.ID = ids.New()
	}

	var peers []models.Photo
	err := e.store.WithinTx(ctx, func(tx repository.Tx) error {
		peers = nil
		if err := tx.LockZone(ctx, photo.ZoneID); err != nil {
			return err
		}
		if err := tx.InsertPhoto(ctx, photo); err != nil {
			return fmt.Errorf("insert photo: %w", err)
		}

		population, err := tx.CountZone(ctx, photo.ZoneID, now)
		if err != nil {
			return fmt.Errorf("count zone: %w", err)
		}
		if population < e.cfg.ZoneThreshold {
			return nil
		}

		rebalanced, err := tx.RebalanceZone(ctx, photo.ZoneID, now.Add(e.cfg.BaseLifespan), now)
		if err != nil {
			return fmt.Errorf("rebalance zone: %w", err)
		}
		for _, p := range rebalanced {
			if p.ID == photo.ID {
				photo = p
				continue
			}
			peers = append(peers, p)
		}
		return nil
	})
	if err != nil {
		return models.Photo{}, err
	}

	metrics.PhotosCreated.Inc()
	logEvent := e.log.Info().
		Str("photo_id", photo.ID).
		Str("zone_id", photo.ZoneID)
	if photo.ExpiresAt != nil {
		metrics.ZoneRebalances.Inc()
		logEvent = logEvent.Int("rebalanced", len(peers)+1).Time("expires_at", *photo.ExpiresAt)
	}
	logEvent.Msg("photo created")

	e.publishPhoto(ctx, models.ActionInsert, photo)
	for _, p := range peers {
		e.publishPhoto(ctx, models.ActionUpdate, p)
	}
	return photo, nil
}

func (e *Engine) Like(ctx context.Context, photoID string, actorID string) (models.Photo, error) {
	return e.interact(ctx, photoID, actorID, models.InteractionLike)
}

// Dislike is gated on the actor's global balance: total likes must exceed
// total dislikes before this one counts.
func (e *Engine) Dislike(ctx context.Context, photoID string, actorID string) (models.Photo, error) {
	return e.interact(ctx, photoID, actorID, models.InteractionDislike)
}

func (e *Engine) interact(ctx context.Context, photoID string, actorID string, kind models.InteractionKind) (models.Photo, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return models.Photo{}, ErrActorRequired
	}

	var updated models.Photo
	for attempt := 0; ; attempt++ {
		err := e.store.WithinTx(ctx, func(tx repository.Tx) error {
			now := e.now()
			photo, err := tx.GetPhoto(ctx, photoID)
			if err != nil {
				return err
			}
			if StateOf(photo, now) == StateExpired {
				return ErrPhotoExpired
			}

			// Best effort: concurrent dislikes by one actor can read the same
			// balance and both pass.
			if kind == models.InteractionDislike {
				balance, err := tx.ActorBalance(ctx, actorID)
				if err != nil {
					return fmt.Errorf("actor balance: %w", err)
				}
				if !balance.CanDislike() {
					return ErrDislikeNotAllowed
				}
			}

			if err := tx.RecordInteraction(ctx, models.Interaction{
				ActorID:   actorID,
				PhotoID:   photoID,
				Kind:      kind,
				CreatedAt: now,
			}); err != nil {
				if errors.Is(err, repository.ErrDuplicateInteraction) {
					return ErrAlreadyInteracted
				}
				return err
			}

			patch := ApplyLike(photo, e.cfg.BaseLifespan, now)
			if kind == models.InteractionDislike {
				patch = ApplyDislike(photo, e.cfg.BaseLifespan, now)
			}
			updated, err = tx.UpdatePhoto(ctx, photoID, patch, photo.Version)
			return err
		})
		if err == nil {
			break
		}

		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt < e.cfg.ConflictRetries {
				e.log.Debug().Str("photo_id", photoID).Int("attempt", attempt+1).Msg("version conflict, retrying")
				continue
			}
			metrics.Interactions.WithLabelValues(string(kind), "conflict").Inc()
			return models.Photo{}, ErrConflict
		}
		metrics.Interactions.WithLabelValues(string(kind), "rejected").Inc()
		return models.Photo{}, err
	}

	metrics.Interactions.WithLabelValues(string(kind), "applied").Inc()
	e.publishPhoto(ctx, models.ActionUpdate, updated)
	return updated, nil
}

// DeletePhotos removes photos and their comments, then removes their assets.
// Zones that drop below the threshold are reverted in the same transaction.
func (e *Engine) DeletePhotos(ctx context.Context, photoIDs []string) (int, error) {
	photoIDs = dedupe(photoIDs)
	if len(photoIDs) == 0 {
		return 0, nil
	}

	deleted, err := e.removeAndRevert(ctx, e.now(),
		func(tx repository.Tx) ([]string, error) { return zonesOfIDs(ctx, tx, photoIDs) },
		func(tx repository.Tx) ([]models.Photo, error) { return tx.DeletePhotos(ctx, photoIDs) },
	)
	if err != nil {
		return 0, fmt.Errorf("delete photos: %w", err)
	}

	e.removeAssets(ctx, deleted)
	return len(deleted), nil
}

// ReapExpired deletes those of the given photos that are still expired at
// now, reverting the zones they leave in the same transaction. Asset removal
// is left to the caller.
func (e *Engine) ReapExpired(ctx context.Context, expired []models.Photo, now time.Time) ([]models.Photo, error) {
	ids := make([]string, 0, len(expired))
	for _, p := range expired {
		ids = append(ids, p.ID)
	}
	return e.removeAndRevert(ctx, now,
		func(repository.Tx) ([]string, error) { return ZonesOf(expired), nil },
		func(tx repository.Tx) ([]models.Photo, error) { return tx.DeleteExpired(ctx, ids, now) },
	)
}

// removeAndRevert locks the candidate zones in a stable order before any row
// is touched, so it cannot deadlock against CreatePhoto. A failed revert rolls
// the delete back with it.
func (e *Engine) removeAndRevert(
	ctx context.Context,
	now time.Time,
	zonesOf func(tx repository.Tx) ([]string, error),
	remove func(tx repository.Tx) ([]models.Photo, error),
) ([]models.Photo, error) {
	var deleted, reverted []models.Photo
	revertedZones := 0
	err := e.store.WithinTx(ctx, func(tx repository.Tx) error {
		deleted, reverted, revertedZones = nil, nil, 0

		zoneIDs, err := zonesOf(tx)
		if err != nil {
			return err
		}
		zoneIDs = append([]string(nil), zoneIDs...)
		sort.Strings(zoneIDs)
		for _, zoneID := range zoneIDs {
			if err := tx.LockZone(ctx, zoneID); err != nil {
				return err
			}
		}

		deleted, err = remove(tx)
		if err != nil {
			return err
		}

		for _, zoneID := range ZonesOf(deleted) {
			photos, err := e.revertBelowThreshold(ctx, tx, zoneID, now)
			if err != nil {
				return fmt.Errorf("zone %s: %w", zoneID, err)
			}
			if len(photos) > 0 {
				revertedZones++
				reverted = append(reverted, photos...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if revertedZones > 0 {
		metrics.ZoneReverts.Add(float64(revertedZones))
		e.log.Info().Int("zones", revertedZones).Int("reverted", len(reverted)).Msg("zones reverted to infinite life")
	}
	e.publishDeleted(ctx, deleted)
	for _, p := range reverted {
		e.publishPhoto(ctx, models.ActionUpdate, p)
	}
	return deleted, nil
}

// ReevaluateZone reverts a zone to infinite life once its population drops
// below the threshold. Counters are left as they are; a zone never becomes
// finite here.
func (e *Engine) ReevaluateZone(ctx context.Context, zoneID string) ([]models.Photo, error) {
	var reverted []models.Photo
	err := e.store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.LockZone(ctx, zoneID); err != nil {
			return err
		}
		var err error
		reverted, err = e.revertBelowThreshold(ctx, tx, zoneID, e.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(reverted) > 0 {
		metrics.ZoneReverts.Inc()
		e.log.Info().Str("zone_id", zoneID).Int("reverted", len(reverted)).Msg("zone reverted to infinite life")
	}
	for _, p := range reverted {
		e.publishPhoto(ctx, models.ActionUpdate, p)
	}
	return reverted, nil
}

// revertBelowThreshold expects the zone lock to be held by tx.
func (e *Engine) revertBelowThreshold(ctx context.Context, tx repository.Tx, zoneID string, now time.Time) ([]models.Photo, error) {
	population, err := tx.CountZone(ctx, zoneID, now)
	if err != nil {
		return nil, fmt.Errorf("count zone: %w", err)
	}
	if population >= e.cfg.ZoneThreshold {
		return nil, nil
	}

	reverted, err := tx.RevertZone(ctx, zoneID, now)
	if err != nil {
		return nil, fmt.Errorf("revert zone: %w", err)
	}
	return reverted, nil
}

// removeAssets runs after commit; a blob left behind only costs storage.
func (e *Engine) removeAssets(ctx context.Context, photos []models.Photo) {
	if e.assets == nil {
		return
	}
	for _, p := range photos {
		if err := e.assets.RemoveAssets(ctx, p.Assets); err != nil {
			metrics.AssetRemovalFailures.Inc()
			e.log.Warn().Err(err).Str("photo_id", p.ID).Msg("remove assets failed")
		}
	}
}

func (e *Engine) publishDeleted(ctx context.Context, photos []models.Photo) {
	for _, p := range photos {
		e.publish(ctx, models.ChangeEvent{
			Entity: models.EntityPhotos,
			Action: models.ActionDelete,
			ID:     p.ID,
		})
	}
}

func (e *Engine) publishPhoto(ctx context.Context, action models.ChangeAction, photo models.Photo) {
	view := e.present(photo)
	e.publish(ctx, models.ChangeEvent{
		Entity: models.EntityPhotos,
		Action: action,
		ID:     photo.ID,
		Photo:  &view,
	})
}

func (e *Engine) publish(ctx context.Context, event models.ChangeEvent) {
	if e.publisher == nil {
		return
	}
	event.Timestamp = e.now()
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.log.Warn().Err(err).
			Str("entity", string(event.Entity)).
			Str("action", string(event.Action)).
			Str("id", event.ID).
			Msg("publish change failed")
	}
}

// ZonesOf returns the distinct zones of photos in first-seen order.
func ZonesOf(photos []models.Photo) []string {
	seen := make(map[string]struct{}, len(photos))
	var zones []string
	for _, p := range photos {
		if _, ok := seen[p.ZoneID]; ok {
			continue
		}
		seen[p.ZoneID] = struct{}{}
		zones = append(zones, p.ZoneID)
	}
	return zones
}

// zonesOfIDs looks up the zones of photos about to be deleted. Unknown ids
// are skipped; DeletePhotos ignores them too.
func zonesOfIDs(ctx context.Context, tx repository.Tx, photoIDs []string) ([]string, error) {
	photos := make([]models.Photo, 0, len(photoIDs))
	for _, id := range photoIDs {
		p, err := tx.GetPhoto(ctx, id)
		if errors.Is(err, repository.ErrPhotoNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get photo: %w", err)
		}
		photos = append(photos, p)
	}
	return ZonesOf(photos), nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
