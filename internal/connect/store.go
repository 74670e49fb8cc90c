package connect

import (
	"context"
	"sync"
)

// Update is a partial configuration. Nil fields are left untouched; a non-nil
// empty Fonts slice clears the fonts.
type Update struct {
	PublicKey   *string
	FetchSecret SecretFetcher
	Appearance  *Appearance
	Locale      *string
	Fonts       []FontSource
	Overrides   *Overrides
}

// Empty reports whether u sets no field.
func (u Update) Empty() bool {
	return u.PublicKey == nil && u.FetchSecret == nil && u.Appearance == nil &&
		u.Locale == nil && u.Fonts == nil && u.Overrides == nil
}

// Slots lists the slots u replaces, in declaration order.
func (u Update) Slots() []Slot {
	var out []Slot
	if u.PublicKey != nil {
		out = append(out, SlotPublicKey)
	}
	if u.FetchSecret != nil {
		out = append(out, SlotFetchSecret)
	}
	if u.Appearance != nil {
		out = append(out, SlotAppearance)
	}
	if u.Locale != nil {
		out = append(out, SlotLocale)
	}
	if u.Fonts != nil {
		out = append(out, SlotFonts)
	}
	if u.Overrides != nil {
		out = append(out, SlotOverrides)
	}
	return out
}

// Merge folds next over u, last write wins per field.
func (u Update) Merge(next Update) Update {
	out := u
	if next.PublicKey != nil {
		out.PublicKey = next.PublicKey
	}
	if next.FetchSecret != nil {
		out.FetchSecret = next.FetchSecret
	}
	if next.Appearance != nil {
		out.Appearance = next.Appearance
	}
	if next.Locale != nil {
		out.Locale = next.Locale
	}
	if next.Fonts != nil {
		out.Fonts = next.Fonts
	}
	if next.Overrides != nil {
		out.Overrides = next.Overrides
	}
	return out
}

// Subscriber receives the partial passed to Store.Update.
type Subscriber func(Update)

// AssetLoader resolves boot-time assets (extra fonts) once per store.
type AssetLoader func(ctx context.Context) ([]FontSource, error)

// Store holds the Configuration of one logical connection. Create it with
// NewStore; a zero Store is rejected by Check.
type Store struct {
	mu        sync.RWMutex
	created   bool
	cfg       Configuration
	revs      Revisions
	onUpdate  Subscriber
	assets    *assetInit
	assetOnce sync.Once
}

// NewStore stores cfg as-is.
func NewStore(cfg Configuration) *Store {
	return &Store{created: true, cfg: cfg}
}

// Check fails with ErrNotAStore unless s was produced by NewStore.
func Check(s *Store) error {
	if s == nil {
		return ErrNotAStore
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.created {
		return ErrNotAStore
	}
	return nil
}

// Update merges u into the configuration and then hands u to the subscriber.
func (s *Store) Update(u Update) {
	s.mu.Lock()
	if u.PublicKey != nil {
		s.cfg.PublicKey = *u.PublicKey
	}
	if u.FetchSecret != nil {
		s.cfg.FetchSecret = u.FetchSecret
	}
	if u.Appearance != nil {
		s.cfg.Appearance = u.Appearance
	}
	if u.Locale != nil {
		s.cfg.Locale = *u.Locale
	}
	if u.Fonts != nil {
		s.cfg.Fonts = u.Fonts
	}
	if u.Overrides != nil {
		s.cfg.Overrides = *u.Overrides
	}
	for _, slot := range u.Slots() {
		s.revs[slot]++
	}
	fn := s.onUpdate
	s.mu.Unlock()

	if fn != nil {
		fn(u)
	}
}

// AttachSubscriber sets fn as the subscriber unless one is already attached.
// It reports whether fn was installed.
func (s *Store) AttachSubscriber(fn Subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onUpdate != nil || fn == nil {
		return false
	}
	s.onUpdate = fn
	return true
}

// Snapshot returns the current configuration and its slot revisions.
func (s *Store) Snapshot() (Configuration, Revisions) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.revs
}

// Config returns the current configuration.
func (s *Store) Config() Configuration {
	cfg, _ := s.Snapshot()
	return cfg
}

type assetInit struct {
	done  chan struct{}
	fonts []FontSource
	err   error
}

// InitAssets starts the store's single asynchronous asset initializer.
// Later calls are ignored.
func (s *Store) InitAssets(ctx context.Context, load AssetLoader) {
	s.assetOnce.Do(func() {
		a := &assetInit{done: make(chan struct{})}
		s.mu.Lock()
		s.assets = a
		s.mu.Unlock()
		go func() {
			defer close(a.done)
			a.fonts, a.err = load(ctx)
		}()
	})
}

// Assets waits for the initializer started by InitAssets. Without an
// initializer it returns immediately with no fonts.
func (s *Store) Assets(ctx context.Context) ([]FontSource, error) {
	s.mu.RLock()
	a := s.assets
	s.mu.RUnlock()
	if a == nil {
		return nil, nil
	}
	select {
	case <-a.done:
		return a.fonts, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
