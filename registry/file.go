package registry

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/signway/signway"
)

// fileRecord is the on-disk JSON shape for a single client record.
type fileRecord struct {
	ID            string              `json:"id"`
	SecretHex     string              `json:"secret_hex"`
	HeaderOverlay []fileHeaderOverlay `json:"header_overlay,omitempty"`
	AllowedHosts  []string            `json:"allowed_hosts,omitempty"`
}

type fileHeaderOverlay struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// fileDocument is the top-level shape of a registry file: a flat list
// of client records.
type fileDocument struct {
	Clients []fileRecord `json:"clients"`
}

// FileRegistry is a Registry backed by a JSON file on disk, reloaded
// periodically onto an atomically-swapped snapshot pointer (spec §9
// "Registry freshness") so in-flight lookups always observe a
// consistent map, never a partially-rebuilt one.
type FileRegistry struct {
	path     string
	interval time.Duration
	logger   *logrus.Logger

	snapshot atomic.Pointer[map[string]*signway.ClientRecord]

	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// FileRegistryOption configures a FileRegistry.
type FileRegistryOption func(*FileRegistry)

// WithReloadInterval sets how often the file is re-read. Defaults to 30
// seconds.
func WithReloadInterval(d time.Duration) FileRegistryOption {
	return func(r *FileRegistry) { r.interval = d }
}

// WithFileLogger sets the logger used for reload failures. Defaults to
// logrus.StandardLogger().
func WithFileLogger(logger *logrus.Logger) FileRegistryOption {
	return func(r *FileRegistry) { r.logger = logger }
}

// NewFileRegistry loads path once synchronously (returning an error if
// that initial load fails) and then starts a background goroutine that
// reloads it every interval, swapping in a fresh snapshot. A reload
// failure (missing file, invalid JSON, invalid secret) logs and keeps
// serving the previous snapshot rather than going dark.
func NewFileRegistry(path string, opts ...FileRegistryOption) (*FileRegistry, error) {
	r := &FileRegistry{
		path:     path,
		interval: 30 * time.Second,
		logger:   logrus.StandardLogger(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.reload(); err != nil {
		return nil, fmt.Errorf("registry: initial load of %s: %w", path, err)
	}

	r.wg.Add(1)
	go r.reloadLoop()

	return r, nil
}

// Lookup implements signway.Registry, reading the current snapshot
// without blocking on any in-progress reload.
func (r *FileRegistry) Lookup(_ context.Context, id string) (*signway.ClientRecord, error) {
	snap := r.snapshot.Load()
	if snap == nil {
		return nil, ErrNotFound
	}
	rec, ok := (*snap)[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Close stops the reload goroutine. Safe to call more than once.
func (r *FileRegistry) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		close(r.done)
		r.wg.Wait()
	}
	return nil
}

func (r *FileRegistry) reloadLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			if err := r.reload(); err != nil {
				r.logger.WithError(err).WithField("path", r.path).
					Warn("registry: reload failed, serving previous snapshot")
			}
		}
	}
}

func (r *FileRegistry) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}

	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	next := make(map[string]*signway.ClientRecord, len(doc.Clients))
	for _, fr := range doc.Clients {
		rec, err := fr.toClientRecord()
		if err != nil {
			return fmt.Errorf("client %q: %w", fr.ID, err)
		}
		next[rec.ID] = rec
	}

	r.snapshot.Store(&next)
	return nil
}

func (fr *fileRecord) toClientRecord() (*signway.ClientRecord, error) {
	if fr.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	secret, err := hex.DecodeString(fr.SecretHex)
	if err != nil || len(secret) == 0 {
		return nil, fmt.Errorf("invalid secret_hex")
	}
	overlay := make(signway.HeaderOverlay, 0, len(fr.HeaderOverlay))
	for _, h := range fr.HeaderOverlay {
		overlay = append(overlay, signway.Header{Name: h.Name, Value: h.Value})
	}
	return &signway.ClientRecord{
		ID:            fr.ID,
		Secret:        secret,
		HeaderOverlay: overlay,
		AllowedHosts:  fr.AllowedHosts,
	}, nil
}
