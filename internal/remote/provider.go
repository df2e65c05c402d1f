package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"controljm/internal/storage"
)

const (
	// settingsKey is where the remote configuration lives in the local
	// store's settings surface.
	settingsKey = "remote.config"

	// placeholderAnonKey is the not-yet-configured sentinel the settings
	// screen ships with.
	placeholderAnonKey = "TU_ANON_KEY_AQUI"

	// minAnonKeyLen is the shortest credential considered plausible. This
	// is a shape check, not a connectivity probe.
	minAnonKeyLen = 50
)

// Settings is the configuration surface of the remote backend: endpoint URL
// and the anon credential attached to every request.
type Settings struct {
	URL     string `json:"url"`
	AnonKey string `json:"anonKey"`
}

// Normalize trims whitespace and trailing slashes.
func (s Settings) Normalize() Settings {
	return Settings{
		URL:     strings.TrimRight(strings.TrimSpace(s.URL), "/"),
		AnonKey: strings.TrimSpace(s.AnonKey),
	}
}

// Plausible reports whether the credential looks usable: non-empty URL, a
// key of minimum length that is not the known placeholder.
func (s Settings) Plausible() bool {
	return s.URL != "" &&
		len(s.AnonKey) >= minAnonKeyLen &&
		s.AnonKey != placeholderAnonKey
}

// Provider owns the single live Client handle, keyed by the current
// settings. The client is built lazily under a mutex on first use and
// invalidated whenever settings are saved, so configuration changes take
// effect deterministically. The provider is injected wherever remote access
// is needed; there is no package-level instance.
type Provider struct {
	store    storage.Store
	fallback Settings

	mu     sync.Mutex
	client *Client
}

// NewProvider creates a provider reading persisted settings from the local
// store, falling back to the environment-supplied settings when nothing
// plausible has been saved yet.
func NewProvider(store storage.Store, fallback Settings) *Provider {
	return &Provider{
		store:    store,
		fallback: fallback.Normalize(),
	}
}

// Settings returns the active remote settings: the persisted pair when it is
// plausible, the fallback otherwise.
func (p *Provider) Settings(ctx context.Context) Settings {
	raw, err := p.store.GetSetting(ctx, settingsKey)
	if err != nil || raw == "" {
		return p.fallback
	}
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		slog.WarnContext(ctx, "Malformed remote settings, using fallback", "error", err)
		return p.fallback
	}
	s = s.Normalize()
	if !s.Plausible() {
		return p.fallback
	}
	return s
}

// SaveSettings persists new settings and invalidates the cached client so
// the next remote operation reconnects with the new pair.
func (p *Provider) SaveSettings(ctx context.Context, s Settings) error {
	s = s.Normalize()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal remote settings: %w", err)
	}
	if err := p.store.PutSetting(ctx, settingsKey, string(raw)); err != nil {
		return fmt.Errorf("persist remote settings: %w", err)
	}

	p.mu.Lock()
	p.client = nil
	p.mu.Unlock()

	slog.InfoContext(ctx, "Remote settings saved, client invalidated", "url", s.URL)
	return nil
}

// IsConfigured reports whether a credential of plausible shape is present.
// Cheap and local; it never probes the network.
func (p *Provider) IsConfigured(ctx context.Context) bool {
	return p.Settings(ctx).Plausible()
}

// Client returns the live client for the current settings, constructing it
// on first use. Returns nil when the remote is not configured; callers treat
// that as a normal no-op.
func (p *Provider) Client(ctx context.Context) *Client {
	settings := p.Settings(ctx)
	if !settings.Plausible() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.settings == settings {
		return p.client
	}
	p.client = NewClient(settings)
	return p.client
}
