// Package testutil holds in-memory doubles shared by package tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"geodrop/internal/models"
	"geodrop/internal/repository"
)

// MemStore mimics the postgres photo store: one transaction at a time, full
// rollback when the callback fails.
type MemStore struct {
	mu       sync.Mutex
	photos   map[string]models.Photo
	comments map[string][]models.Comment
	actions  map[[2]string]models.InteractionKind
	balances map[string]models.ActorBalance

	// Fail makes the named operation return the error.
	Fail map[string]error
	// Conflicts makes the next UpdatePhoto calls fail with a version conflict,
	// as if another writer got there first.
	Conflicts int
	// Calls counts operations by name.
	Calls map[string]int
}

func NewMemStore() *MemStore {
	return &MemStore{
		photos:   make(map[string]models.Photo),
		comments: make(map[string][]models.Comment),
		actions:  make(map[[2]string]models.InteractionKind),
		balances: make(map[string]models.ActorBalance),
		Fail:     make(map[string]error),
		Calls:    make(map[string]int),
	}
}

// Seed stores photos as-is, bypassing lifecycle rules.
func (s *MemStore) Seed(photos ...models.Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range photos {
		if p.Version == 0 {
			p.Version = 1
		}
		s.photos[p.ID] = clonePhoto(p)
	}
}

func (s *MemStore) SeedComment(c models.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[c.PhotoID] = append(s.comments[c.PhotoID], c)
}

func (s *MemStore) SetBalance(actorID string, balance models.ActorBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[actorID] = balance
}

func (s *MemStore) Balance(actorID string) models.ActorBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[actorID]
}

func (s *MemStore) Photo(id string) (models.Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	return clonePhoto(p), ok
}

// Zone returns the photos of a zone sorted by id.
func (s *MemStore) Zone(zoneID string) []models.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Photo
	for _, p := range s.photos {
		if p.ZoneID == zoneID {
			out = append(out, clonePhoto(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.photos)
}

func (s *MemStore) CommentCount(photoID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.comments[photoID])
}

func (s *MemStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["tx"]++

	if err := s.Fail["begin"]; err != nil {
		return err
	}

	snapshot := s.snapshot()
	if err := fn(memTx{s: s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *MemStore) ListExpired(ctx context.Context, now time.Time) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls["ListExpired"]++

	if err := s.Fail["ListExpired"]; err != nil {
		return nil, err
	}
	var out []models.Photo
	for _, p := range s.photos {
		if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
			out = append(out, clonePhoto(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type snapshot struct {
	photos   map[string]models.Photo
	comments map[string][]models.Comment
	actions  map[[2]string]models.InteractionKind
	balances map[string]models.ActorBalance
}

func (s *MemStore) snapshot() snapshot {
	snap := snapshot{
		photos:   make(map[string]models.Photo, len(s.photos)),
		comments: make(map[string][]models.Comment, len(s.comments)),
		actions:  make(map[[2]string]models.InteractionKind, len(s.actions)),
		balances: make(map[string]models.ActorBalance, len(s.balances)),
	}
	for k, v := range s.photos {
		snap.photos[k] = clonePhoto(v)
	}
	for k, v := range s.comments {
		snap.comments[k] = append([]models.Comment(nil), v...)
	}
	for k, v := range s.actions {
		snap.actions[k] = v
	}
	for k, v := range s.balances {
		snap.balances[k] = v
	}
	return snap
}

func (s *MemStore) restore(snap snapshot) {
	s.photos = snap.photos
	s.comments = snap.comments
	s.actions = snap.actions
	s.balances = snap.balances
}

type memTx struct {
	s *MemStore
}

func (t memTx) fail(op string) error {
	t.s.Calls[op]++
	return t.s.Fail[op]
}

func (t memTx) LockZone(ctx context.Context, zoneID string) error {
	return t.fail("LockZone")
}

func (t memTx) GetPhoto(ctx context.Context, id string) (models.Photo, error) {
	if err := t.fail("GetPhoto"); err != nil {
		return models.Photo{}, err
	}
	p, ok := t.s.photos[id]
	if !ok {
		return models.Photo{}, repository.ErrPhotoNotFound
	}
	return clonePhoto(p), nil
}

func (t memTx) InsertPhoto(ctx context.Context, photo models.Photo) error {
	if err := t.fail("InsertPhoto"); err != nil {
		return err
	}
	t.s.photos[photo.ID] = clonePhoto(photo)
	return nil
}

func (t memTx) CountZone(ctx context.Context, zoneID string, now time.Time) (int, error) {
	if err := t.fail("CountZone"); err != nil {
		return 0, err
	}
	count := 0
	for _, p := range t.s.photos {
		if p.ZoneID == zoneID && live(p, now) {
			count++
		}
	}
	return count, nil
}

func (t memTx) RebalanceZone(ctx context.Context, zoneID string, expiresAt time.Time, now time.Time) ([]models.Photo, error) {
	if err := t.fail("RebalanceZone"); err != nil {
		return nil, err
	}
	var out []models.Photo
	for id, p := range t.s.photos {
		if p.ZoneID != zoneID || !live(p, now) {
			continue
		}
		e := expiresAt
		p.Likes, p.Dislikes, p.ExpiresAt = 0, 0, &e
		p.Version++
		t.s.photos[id] = p
		out = append(out, clonePhoto(p))
	}
	return out, nil
}

func (t memTx) RevertZone(ctx context.Context, zoneID string, now time.Time) ([]models.Photo, error) {
	if err := t.fail("RevertZone"); err != nil {
		return nil, err
	}
	var out []models.Photo
	for id, p := range t.s.photos {
		if p.ZoneID != zoneID || p.ExpiresAt == nil || !p.ExpiresAt.After(now) {
			continue
		}
		p.ExpiresAt = nil
		p.Version++
		t.s.photos[id] = p
		out = append(out, clonePhoto(p))
	}
	return out, nil
}

func (t memTx) UpdatePhoto(ctx context.Context, id string, patch models.PhotoPatch, version int64) (models.Photo, error) {
	if err := t.fail("UpdatePhoto"); err != nil {
		return models.Photo{}, err
	}
	p, ok := t.s.photos[id]
	if !ok {
		return models.Photo{}, repository.ErrPhotoNotFound
	}
	if t.s.Conflicts > 0 {
		t.s.Conflicts--
		return models.Photo{}, repository.ErrVersionConflict
	}
	if p.Version != version {
		return models.Photo{}, repository.ErrVersionConflict
	}
	if patch.Likes != nil {
		p.Likes = *patch.Likes
	}
	if patch.Dislikes != nil {
		p.Dislikes = *patch.Dislikes
	}
	if patch.ClearExpiry {
		p.ExpiresAt = nil
	} else if patch.ExpiresAt != nil {
		e := *patch.ExpiresAt
		p.ExpiresAt = &e
	}
	if patch.LastInteraction != nil {
		li := *patch.LastInteraction
		p.LastInteraction = &li
	}
	p.Version++
	t.s.photos[id] = p
	return clonePhoto(p), nil
}

func (t memTx) RecordInteraction(ctx context.Context, interaction models.Interaction) error {
	if err := t.fail("RecordInteraction"); err != nil {
		return err
	}
	if _, ok := t.s.photos[interaction.PhotoID]; !ok {
		return repository.ErrPhotoNotFound
	}
	key := [2]string{interaction.ActorID, interaction.PhotoID}
	if _, ok := t.s.actions[key]; ok {
		return repository.ErrDuplicateInteraction
	}
	t.s.actions[key] = interaction.Kind

	b := t.s.balances[interaction.ActorID]
	if interaction.Kind == models.InteractionLike {
		b.Likes++
	} else {
		b.Dislikes++
	}
	t.s.balances[interaction.ActorID] = b
	return nil
}

func (t memTx) ActorBalance(ctx context.Context, actorID string) (models.ActorBalance, error) {
	if err := t.fail("ActorBalance"); err != nil {
		return models.ActorBalance{}, err
	}
	return t.s.balances[actorID], nil
}

func (t memTx) DeletePhotos(ctx context.Context, ids []string) ([]models.Photo, error) {
	if err := t.fail("DeletePhotos"); err != nil {
		return nil, err
	}
	var out []models.Photo
	for _, id := range ids {
		p, ok := t.s.photos[id]
		if !ok {
			continue
		}
		delete(t.s.comments, id)
		delete(t.s.photos, id)
		for key := range t.s.actions {
			if key[1] == id {
				delete(t.s.actions, key)
			}
		}
		out = append(out, clonePhoto(p))
	}
	return out, nil
}

func (t memTx) DeleteExpired(ctx context.Context, ids []string, now time.Time) ([]models.Photo, error) {
	if err := t.fail("DeleteExpired"); err != nil {
		return nil, err
	}
	var expired []string
	for _, id := range ids {
		p, ok := t.s.photos[id]
		if ok && p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
			expired = append(expired, id)
		}
	}
	if len(expired) == 0 {
		return nil, nil
	}
	return t.DeletePhotos(ctx, expired)
}

func live(p models.Photo, now time.Time) bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}

func clonePhoto(p models.Photo) models.Photo {
	if p.ExpiresAt != nil {
		e := *p.ExpiresAt
		p.ExpiresAt = &e
	}
	if p.LastInteraction != nil {
		li := *p.LastInteraction
		p.LastInteraction = &li
	}
	return p
}
