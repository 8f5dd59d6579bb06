// Package artifact exports rendered graph views to disk.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"signalboard/internal/domain"
	"signalboard/internal/render"
)

// ManifestFile is the name of the sidecar written next to the images.
const ManifestFile = "manifest.json"

var tickerRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,14}$`)

// ErrNothingToExport is returned when the view carries no graph.
var ErrNothingToExport = errors.New("artifact: view has no graph to export")

// ImageMeta describes one exported image.
type ImageMeta struct {
	Key       domain.ArtifactKey `json:"key"`
	Caption   string             `json:"caption"`
	File      string             `json:"file"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	SizeBytes int                `json:"size_bytes"`
}

// Manifest is the metadata written to manifest.json.
type Manifest struct {
	Ticker    domain.Ticker                `json:"ticker"`
	Mode      domain.Mode                  `json:"mode"`
	Heading   string                       `json:"heading"`
	Images    []ImageMeta                  `json:"images"`
	Metrics   map[domain.MetricKey]float64 `json:"metrics,omitempty"`
	CreatedAt time.Time                    `json:"created_at"`
	Dir       string                       `json:"-"`
}

// Store writes graph artifacts under a root directory.
type Store struct {
	dir string
	log *slog.Logger
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a Store rooted at dir and ensures the directory exists.
func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact store: mkdir %s: %w", dir, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{dir: dir, log: log, now: time.Now}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

func validateTicker(t domain.Ticker) error {
	if !tickerRe.MatchString(string(t)) {
		return fmt.Errorf("artifact store: invalid ticker %q", t)
	}
	return nil
}

// Save writes every image of a graph view to {dir}/{TICKER}/{key}.png
// followed by the manifest. Every image is decoded before anything is
// written, and files are staged under temporary names and renamed into place
// only once all of them are on disk. A failed Save leaves any previous export
// of the ticker untouched.
func (s *Store) Save(v render.View) (Manifest, error) {
	if v.Kind != render.KindGraph || len(v.Images) == 0 {
		return Manifest{}, ErrNothingToExport
	}
	if err := validateTicker(v.Selected); err != nil {
		return Manifest{}, err
	}

	m := Manifest{
		Ticker:  v.Selected,
		Mode:    v.Mode,
		Heading: v.Heading,
	}
	for _, img := range v.Images {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
		if err != nil {
			return Manifest{}, fmt.Errorf("artifact store: decode %s: %w", img.Key, err)
		}
		m.Images = append(m.Images, ImageMeta{
			Key:       img.Key,
			Caption:   img.Caption,
			File:      string(img.Key) + ".png",
			Width:     cfg.Width,
			Height:    cfg.Height,
			SizeBytes: len(img.Data),
		})
	}
	if len(v.Metrics) > 0 {
		m.Metrics = make(map[domain.MetricKey]float64, len(v.Metrics))
		for _, mt := range v.Metrics {
			m.Metrics[mt.Key] = mt.Value
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tickerDir := filepath.Join(s.dir, string(v.Selected))
	if err := os.MkdirAll(tickerDir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("artifact store: mkdir %s: %w", tickerDir, err)
	}
	m.CreatedAt = s.now().UTC()
	m.Dir = tickerDir

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("artifact store: marshal manifest: %w", err)
	}

	// Images first, manifest last, so a reader never sees a manifest that
	// names files from a different export.
	var staged []stagedFile
	discard := func() {
		for _, f := range staged {
			if err := os.Remove(f.tmp); err != nil {
				s.log.Debug("artifact cleanup failed", "path", f.tmp, "error", err)
			}
		}
	}
	for i, img := range v.Images {
		tmp, err := writeTemp(tickerDir, img.Data)
		if err != nil {
			discard()
			return Manifest{}, fmt.Errorf("artifact store: write image: %w", err)
		}
		staged = append(staged, stagedFile{tmp: tmp, final: filepath.Join(tickerDir, m.Images[i].File)})
	}
	tmp, err := writeTemp(tickerDir, data)
	if err != nil {
		discard()
		return Manifest{}, fmt.Errorf("artifact store: write manifest: %w", err)
	}
	staged = append(staged, stagedFile{tmp: tmp, final: filepath.Join(tickerDir, ManifestFile)})

	for i, f := range staged {
		if err := os.Rename(f.tmp, f.final); err != nil {
			for _, rest := range staged[i:] {
				_ = os.Remove(rest.tmp)
			}
			return Manifest{}, fmt.Errorf("artifact store: commit %s: %w", filepath.Base(f.final), err)
		}
	}

	s.log.Info("artifacts exported", "ticker", v.Selected, "images", len(m.Images), "dir", tickerDir)
	return m, nil
}

type stagedFile struct {
	tmp   string
	final string
}

// writeTemp writes data to a new hidden file in dir and returns its path.
func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Load reads the manifest previously written for ticker.
func (s *Store) Load(ticker domain.Ticker) (Manifest, error) {
	if err := validateTicker(ticker); err != nil {
		return Manifest{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tickerDir := filepath.Join(s.dir, string(ticker))
	data, err := os.ReadFile(filepath.Join(tickerDir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, fmt.Errorf("artifact manifest not found: %s", ticker)
		}
		return Manifest{}, fmt.Errorf("artifact store: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("artifact store: unmarshal manifest: %w", err)
	}
	m.Dir = tickerDir
	return m, nil
}
