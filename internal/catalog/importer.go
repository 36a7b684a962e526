package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adstudio/backend/internal/metrics"
	"github.com/adstudio/backend/internal/models"
)

// AssetStorage persists uploaded media and returns its location.
type AssetStorage interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
}

// VideoCreator records an imported video.
type VideoCreator interface {
	Add(ctx context.Context, video models.Video) error
}

// ManifestEntry describes one clip to import. File and Thumbnail are paths
// relative to the manifest source, or existing locations when no asset
// storage is configured.
type ManifestEntry struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	DurationSeconds int      `json:"durationSeconds"`
	File            string   `json:"file"`
	Thumbnail       string   `json:"thumbnail"`
	Tags            []string `json:"tags"`
}

// Manifest is the import file format.
type Manifest struct {
	Videos []ManifestEntry `json:"videos"`
}

// DecodeManifest reads a JSON manifest.
func DecodeManifest(r io.Reader) (Manifest, error) {
	var manifest Manifest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return manifest, nil
}

// ImportResult reports the outcome for a single manifest entry.
type ImportResult struct {
	Entry ManifestEntry
	Video models.Video
	Err   error
}

// ImporterConfig controls the importer worker pool.
type ImporterConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single entry, uploads included.
	Timeout time.Duration
}

// Importer uploads clip assets and records catalog entries using a pool of
// workers.
type Importer struct {
	creator VideoCreator
	storage AssetStorage
	source  fs.FS
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	jobs    chan ManifestEntry
	closing chan struct{}
	sendMu  sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once

	mu      sync.Mutex
	results []ImportResult
}

// ErrImporterClosed is returned when enqueueing after Shutdown.
var ErrImporterClosed = errors.New("importer closed")

// NewImporter starts the worker pool. storage may be nil, in which case
// manifest file references are recorded as-is.
func NewImporter(creator VideoCreator, storage AssetStorage, source fs.FS, cfg ImporterConfig, logger *slog.Logger) *Importer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	imp := &Importer{
		creator: creator,
		storage: storage,
		source:  source,
		timeout: cfg.Timeout,
		logger:  logger,
		now:     time.Now,
		jobs:    make(chan ManifestEntry, cfg.QueueSize),
		closing: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	imp.wg.Add(cfg.Workers)
	for n := 0; n < cfg.Workers; n++ {
		go imp.worker()
	}
	return imp
}

// Enqueue schedules an entry for import.
func (i *Importer) Enqueue(ctx context.Context, entry ManifestEntry) error {
	// jobs is only closed under the write lock, after closing has fired.
	i.sendMu.RLock()
	defer i.sendMu.RUnlock()

	select {
	case <-i.closing:
		return ErrImporterClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-i.closing:
		return ErrImporterClosed
	case <-i.ctx.Done():
		return ErrImporterClosed
	case i.jobs <- entry:
		return nil
	}
}

// Shutdown stops accepting entries and waits for queued ones to finish. If
// ctx expires first, in-flight imports are cancelled.
func (i *Importer) Shutdown(ctx context.Context) error {
	i.once.Do(func() {
		close(i.closing)
		i.sendMu.Lock()
		close(i.jobs)
		i.sendMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		i.cancel()
		return ctx.Err()
	case <-done:
		i.cancel()
		return nil
	}
}

// Results returns the outcomes recorded so far.
func (i *Importer) Results() []ImportResult {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]ImportResult, len(i.results))
	copy(out, i.results)
	return out
}

// Import runs every manifest entry through the pool and waits for completion.
func (i *Importer) Import(ctx context.Context, manifest Manifest) ([]ImportResult, error) {
	for _, entry := range manifest.Videos {
		if err := i.Enqueue(ctx, entry); err != nil {
			_ = i.Shutdown(context.Background())
			return i.Results(), err
		}
	}
	if err := i.Shutdown(ctx); err != nil {
		return i.Results(), err
	}
	return i.Results(), nil
}

func (i *Importer) worker() {
	defer i.wg.Done()
	for entry := range i.jobs {
		video, err := i.handle(entry)
		status := "imported"
		if err != nil {
			status = "failed"
			i.logger.Error("import video failed", "title", entry.Title, "file", entry.File, "error", err)
		} else {
			i.logger.Info("imported video", "video_id", video.ID, "title", video.Title)
		}
		metrics.RecordImport(status)

		i.mu.Lock()
		i.results = append(i.results, ImportResult{Entry: entry, Video: video, Err: err})
		i.mu.Unlock()
	}
}

func (i *Importer) handle(entry ManifestEntry) (models.Video, error) {
	if i.creator == nil {
		return models.Video{}, errors.New("importer has no catalog")
	}

	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return models.Video{}, errors.New("title is required")
	}
	category, err := models.ParseCategory(entry.Category)
	if err != nil {
		return models.Video{}, err
	}
	if strings.TrimSpace(entry.File) == "" {
		return models.Video{}, errors.New("file is required")
	}
	if entry.DurationSeconds < 0 {
		return models.Video{}, errors.New("duration must not be negative")
	}

	ctx, cancel := context.WithTimeout(i.ctx, i.timeout)
	defer cancel()

	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return models.Video{}, fmt.Errorf("invalid id %q", entry.ID)
	}

	fileURL, err := i.store(ctx, path.Join("clips", string(category), id+path.Ext(entry.File)), entry.File)
	if err != nil {
		return models.Video{}, fmt.Errorf("store clip: %w", err)
	}
	var thumbnailURL string
	if entry.Thumbnail != "" {
		thumbnailURL, err = i.store(ctx, path.Join("thumbnails", string(category), id+path.Ext(entry.Thumbnail)), entry.Thumbnail)
		if err != nil {
			return models.Video{}, fmt.Errorf("store thumbnail: %w", err)
		}
	}

	tags := make([]string, 0, len(entry.Tags))
	for _, tag := range entry.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	video := models.Video{
		ID:           id,
		Title:        title,
		Category:     category,
		Duration:     entry.DurationSeconds,
		FileURL:      fileURL,
		ThumbnailURL: thumbnailURL,
		Tags:         tags,
		CreatedAt:    i.now().UTC(),
	}
	if err := i.creator.Add(ctx, video); err != nil {
		return models.Video{}, fmt.Errorf("record video: %w", err)
	}
	return video, nil
}

func (i *Importer) store(ctx context.Context, key, name string) (string, error) {
	if i.storage == nil {
		return name, nil
	}
	if i.source == nil {
		return "", errors.New("importer has no asset source")
	}

	f, err := i.source.Open(path.Clean(name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	return i.storage.Save(ctx, key, f)
}
