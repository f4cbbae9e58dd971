package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/whatsapp"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/logger"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMixedMediaFormats    = errors.New("media batch mixes formats")
	ErrBatchTooLarge        = errors.New("media batch exceeds limit")
)

// MaxBatchSize bounds both the accepted batch and its concurrency.
const MaxBatchSize = 5

// Provider fetches media bytes from the messaging provider.
type Provider interface {
	GetMediaDescriptor(ctx context.Context, accessToken, mediaID string) (*whatsapp.MediaDescriptor, error)
	DownloadMedia(ctx context.Context, accessToken, url string) ([]byte, string, error)
}

// ObjectStore persists mirrored bytes and returns a public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Result describes one mirrored media object.
type Result struct {
	URL      string
	Key      string
	Format   model.MediaType
	MimeType string
}

type Mirror struct {
	provider Provider
	store    ObjectStore
}

func NewMirror(provider Provider, store ObjectStore) *Mirror {
	return &Mirror{provider: provider, store: store}
}

// Classify maps a MIME type onto a stored media format.
func Classify(mimeType string) (model.MediaType, error) {
	mt := mimeType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.ToLower(strings.TrimSpace(mt))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return model.MediaImage, nil
	case strings.HasPrefix(mt, "video/"):
		return model.MediaVideo, nil
	case strings.HasPrefix(mt, "audio/"):
		return model.MediaAudio, nil
	case strings.HasPrefix(mt, "application/"), strings.HasPrefix(mt, "text/"):
		return model.MediaDocument, nil
	default:
		return model.MediaNone, errors.Wrap(ErrUnsupportedMediaType, mt)
	}
}

// MirrorByID resolves a provider media id to bytes and stores a copy.
func (m *Mirror) MirrorByID(ctx context.Context, agentID int64, accessToken, mediaID string) (*Result, error) {
	desc, err := m.provider.GetMediaDescriptor(ctx, accessToken, mediaID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve media descriptor")
	}
	return m.MirrorURL(ctx, agentID, accessToken, desc.URL)
}

// MirrorURL downloads media from a provider URL and stores a copy.
func (m *Mirror) MirrorURL(ctx context.Context, agentID int64, accessToken, url string) (*Result, error) {
	data, mimeType, err := m.provider.DownloadMedia(ctx, accessToken, url)
	if err != nil {
		return nil, errors.Wrap(err, "download media")
	}

	format, err := Classify(mimeType)
	if err != nil {
		return nil, err
	}

	key := objectKey(agentID, mimeType)
	publicURL, err := m.store.Put(ctx, key, data, mimeType)
	if err != nil {
		return nil, errors.Wrap(err, "store media")
	}

	return &Result{URL: publicURL, Key: key, Format: format, MimeType: mimeType}, nil
}

// MirrorBatch mirrors up to MaxBatchSize media ids concurrently. The batch
// is all-or-nothing: any failure rolls back objects already uploaded, and
// every item must classify to the same format.
func (m *Mirror) MirrorBatch(ctx context.Context, agentID int64, accessToken string, mediaIDs []string) ([]*Result, error) {
	if len(mediaIDs) == 0 {
		return nil, nil
	}
	if len(mediaIDs) > MaxBatchSize {
		return nil, errors.Wrapf(ErrBatchTooLarge, "%d items", len(mediaIDs))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*Result, len(mediaIDs))
	errs := make([]error, len(mediaIDs))

	var wg sync.WaitGroup
	for i, id := range mediaIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			res, err := m.MirrorByID(ctx, agentID, accessToken, id)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = res
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			m.Rollback(context.Background(), results)
			return nil, err
		}
	}

	for _, res := range results[1:] {
		if res.Format != results[0].Format {
			m.Rollback(context.Background(), results)
			return nil, ErrMixedMediaFormats
		}
	}

	return results, nil
}

// Rollback deletes already-uploaded objects, best effort. Callers use it
// when a send is rejected after the batch was mirrored, so the stored
// copies do not outlive the request that produced them.
func (m *Mirror) Rollback(ctx context.Context, results []*Result) {
	for _, res := range results {
		if res == nil {
			continue
		}
		if err := m.store.Delete(ctx, res.Key); err != nil {
			logger.Warn("media rollback delete failed", "key", res.Key, "error", err)
		}
	}
}

func objectKey(agentID int64, mimeType string) string {
	return fmt.Sprintf("agents/%d/media/%s%s", agentID, uuid.NewString(), extForMime(mimeType))
}

func extForMime(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/3gpp":
		return ".3gp"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/aac":
		return ".aac"
	case "audio/amr":
		return ".amr"
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	default:
		return ""
	}
}
