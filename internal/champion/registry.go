// Package champion keeps champion reference data from Data Dragon, refreshed
// only when the game version changes.
package champion

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"claimb/internal/logging"
	"claimb/internal/model"
	"claimb/internal/store"
)

const defaultBaseURL = "https://ddragon.leagueoflegends.com"

// Store is the persistence the registry needs.
type Store interface {
	DataVersion(ctx context.Context, name string) (string, error)
	ReplaceChampions(ctx context.Context, version string, champs []model.Champion) error
	Champions(ctx context.Context) ([]model.Champion, error)
}

// championData is one entry of champion.json.
type championData struct {
	ID    string   `json:"id"`  // "MonkeyKing"
	Key   string   `json:"key"` // numeric id as string
	Name  string   `json:"name"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// Registry holds the champion ID to reference data mapping.
type Registry struct {
	store      Store
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger

	mu      sync.RWMutex
	index   model.ChampionIndex
	version string
}

// Option configures a Registry.
type Option func(*Registry)

// WithBaseURL points the registry at another Data Dragon host (tests).
func WithBaseURL(url string) Option {
	return func(r *Registry) { r.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Registry) { r.httpClient = hc }
}

// NewRegistry creates an empty registry backed by st.
func NewRegistry(st Store, opts ...Option) *Registry {
	r := &Registry{
		store:      st,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		log:        logging.For("champion"),
		index:      model.ChampionIndex{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sync makes the local champion set current. The champion list is downloaded
// only when Data Dragon reports a version different from the stored one. When
// Data Dragon is unreachable but champions are stored, those are used.
func (r *Registry) Sync(ctx context.Context) (model.ChampionIndex, error) {
	stored, err := r.store.DataVersion(ctx, store.VersionChampions)
	if err != nil {
		return nil, err
	}

	latest, err := r.latestVersion(ctx)
	if err != nil {
		if stored == "" {
			return nil, err
		}
		r.log.Warn().Err(err).Str("version", stored).Msg("data dragon unavailable, using stored champions")
		return r.loadStored(ctx)
	}

	if latest == stored {
		return r.loadStored(ctx)
	}

	champs, err := r.fetchChampions(ctx, latest)
	if err != nil {
		if stored == "" {
			return nil, err
		}
		r.log.Warn().Err(err).Msg("champion download failed, using stored champions")
		return r.loadStored(ctx)
	}
	if err := r.store.ReplaceChampions(ctx, latest, champs); err != nil {
		return nil, err
	}

	r.log.Info().Int("champions", len(champs)).Str("version", latest).Msg("champions refreshed")
	return r.set(latest, champs), nil
}

// Index returns the current in-memory index, loading it from the store if empty.
func (r *Registry) Index(ctx context.Context) (model.ChampionIndex, error) {
	r.mu.RLock()
	idx := r.index
	r.mu.RUnlock()
	if len(idx) > 0 {
		return idx, nil
	}
	return r.loadStored(ctx)
}

// Version returns the loaded game version.
func (r *Registry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Name returns the champion name for a given ID
func (r *Registry) Name(id int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.index[id]; ok {
		return c.Name
	}
	return fmt.Sprintf("Champion %d", id)
}

func (r *Registry) loadStored(ctx context.Context) (model.ChampionIndex, error) {
	champs, err := r.store.Champions(ctx)
	if err != nil {
		return nil, err
	}
	version := ""
	if len(champs) > 0 {
		version = champs[0].Version
	}
	return r.set(version, champs), nil
}

func (r *Registry) set(version string, champs []model.Champion) model.ChampionIndex {
	idx := model.NewChampionIndex(champs)
	r.mu.Lock()
	r.index = idx
	r.version = version
	r.mu.Unlock()
	return idx
}

func (r *Registry) latestVersion(ctx context.Context) (string, error) {
	var versions []string
	if err := r.getJSON(ctx, r.baseURL+"/api/versions.json", &versions); err != nil {
		return "", fmt.Errorf("failed to fetch versions: %w", err)
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("no versions available")
	}
	return versions[0], nil
}

func (r *Registry) fetchChampions(ctx context.Context, version string) ([]model.Champion, error) {
	var doc struct {
		Data map[string]championData `json:"data"`
	}
	url := fmt.Sprintf("%s/cdn/%s/data/en_US/champion.json", r.baseURL, version)
	if err := r.getJSON(ctx, url, &doc); err != nil {
		return nil, fmt.Errorf("failed to fetch champions: %w", err)
	}

	champs := make([]model.Champion, 0, len(doc.Data))
	for _, c := range doc.Data {
		id, err := strconv.Atoi(c.Key)
		if err != nil {
			continue
		}
		champs = append(champs, model.Champion{
			ID: id, Key: c.ID, Name: c.Name, Title: c.Title, Tags: c.Tags, Version: version,
		})
	}
	sort.Slice(champs, func(i, j int) bool { return champs[i].ID < champs[j].ID })
	return champs, nil
}

func (r *Registry) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("data dragon returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
