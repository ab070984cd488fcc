package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"mime"
	"path"
	"time"

	"github.com/dunamismax/iconforge/internal/archive"
	"github.com/dunamismax/iconforge/internal/assets"
	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/dunamismax/iconforge/internal/events"
	"github.com/dunamismax/iconforge/internal/id"
	"github.com/dunamismax/iconforge/internal/storage"
	"github.com/dunamismax/iconforge/internal/store"
	"github.com/dunamismax/iconforge/internal/transform"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	MaxPixels       int
	ArchivePassword string
	// Registerer receives the transform metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Studio runs every image operation as read source, transform, encode,
// store, catalog and publish. All outputs live under output/{token}/.
type Studio struct {
	store     storage.Store
	catalog   store.AssetCatalog
	library   *assets.Library
	publisher events.Publisher
	logger    logrus.FieldLogger
	opts      Options
	metrics   *metrics
	tracer    trace.Tracer
	now       func() time.Time
}

func NewStudio(
	objects storage.Store,
	catalog store.AssetCatalog,
	library *assets.Library,
	publisher events.Publisher,
	logger logrus.FieldLogger,
	opts Options,
) *Studio {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Studio{
		store:     objects,
		catalog:   catalog,
		library:   library,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		metrics:   newMetrics(opts.Registerer),
		tracer:    otel.Tracer("iconforge/service"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Object is a stored derived asset ready to be streamed to a client.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Convert resizes the staged upload to width x height. Zero values fall back
// to the App Store icon size.
func (s *Studio) Convert(ctx context.Context, token, sourceKey string, width, height int) (domain.DerivedAsset, error) {
	spec := domain.ResizeSpec(width, height)
	return s.render(ctx, token, spec, func(ctx context.Context) (image.Image, error) {
		src, err := s.load(ctx, sourceKey)
		if err != nil {
			return nil, err
		}
		return transform.Resize(src.Image, spec.Width, spec.Height)
	})
}

// IconSet renders every entry of the iOS icon table, stores each icon as
// output/{token}/icon_*.png and bundles them into one zip archive. A failure
// on any size aborts the whole set. The returned asset is the archive.
func (s *Studio) IconSet(ctx context.Context, token, sourceKey string) (domain.DerivedAsset, error) {
	spec := domain.TransformSpec{Op: domain.OpIconSet}
	return s.run(ctx, token, spec, func(ctx context.Context) (output, error) {
		src, err := s.load(ctx, sourceKey)
		if err != nil {
			return output{}, err
		}
		icons, err := transform.IconSet(src.Image)
		if err != nil {
			return output{}, err
		}

		entries := make([]archive.Entry, 0, len(icons))
		for _, icon := range icons {
			name := icon.Size.Filename()
			data, err := transform.EncodePNG(icon.Image)
			if err != nil {
				return output{}, fmt.Errorf("icon %s: %w", name, err)
			}
			px := icon.Size.Pixels()
			if err := s.save(ctx, domain.DerivedAsset{
				Token:       token,
				Operation:   domain.OpIconSet,
				Filename:    name,
				Key:         storage.OutputKey(token, name),
				ContentType: transform.ContentTypePNG,
				Width:       px,
				Height:      px,
				Bytes:       len(data),
				CreatedAt:   s.now(),
			}, data); err != nil {
				return output{}, err
			}
			entries = append(entries, archive.Entry{Name: name, Data: data})
		}

		data, err := archive.Bytes(entries, s.opts.ArchivePassword)
		if err != nil {
			return output{}, fmt.Errorf("%w: %w", domain.ErrConversion, err)
		}
		return output{data: data, contentType: archive.ContentType}, nil
	})
}

func (s *Studio) Filter(ctx context.Context, token, sourceKey string, kind domain.FilterKind) (domain.DerivedAsset, error) {
	spec := domain.TransformSpec{Op: domain.OpFilter, Filter: kind}
	return s.render(ctx, token, spec, func(ctx context.Context) (image.Image, error) {
		src, err := s.load(ctx, sourceKey)
		if err != nil {
			return nil, err
		}
		return transform.ApplyFilter(src.Image, kind)
	})
}

// HomescreenMockup composites a previously derived asset of the same token
// onto the bundled home screen background.
func (s *Studio) HomescreenMockup(ctx context.Context, token, iconName string) (domain.DerivedAsset, error) {
	spec := domain.TransformSpec{Op: domain.OpHomescreen}
	return s.render(ctx, token, spec, func(ctx context.Context) (image.Image, error) {
		icon, err := s.load(ctx, storage.OutputKey(token, iconName))
		if err != nil {
			return nil, err
		}
		background, err := s.library.HomescreenMockup()
		if err != nil {
			return nil, err
		}
		return transform.HomescreenMockup(background, icon.Image)
	})
}

func (s *Studio) FrameScreenshot(ctx context.Context, token, sourceKey string) (domain.DerivedAsset, error) {
	spec := domain.TransformSpec{Op: domain.OpFrame}
	return s.render(ctx, token, spec, func(ctx context.Context) (image.Image, error) {
		shot, err := s.load(ctx, sourceKey)
		if err != nil {
			return nil, err
		}
		frame, err := s.library.IPhoneFrame()
		if err != nil {
			return nil, err
		}
		return transform.FrameScreenshot(frame, shot.Image)
	})
}

func (s *Studio) NormalizeColor(ctx context.Context, token, sourceKey string) (domain.DerivedAsset, error) {
	spec := domain.TransformSpec{Op: domain.OpColorProfile}
	return s.render(ctx, token, spec, func(ctx context.Context) (image.Image, error) {
		src, err := s.load(ctx, sourceKey)
		if err != nil {
			return nil, err
		}
		return transform.NormalizeColor(src.Image)
	})
}

func (s *Studio) LaunchScreen(ctx context.Context, token, sourceKey string) (domain.DerivedAsset, error) {
	spec := domain.TransformSpec{Op: domain.OpLaunchScreen}
	return s.render(ctx, token, spec, func(ctx context.Context) (image.Image, error) {
		fg, err := s.load(ctx, sourceKey)
		if err != nil {
			return nil, err
		}
		background, err := s.library.LaunchBackground()
		if err != nil {
			return nil, err
		}
		return transform.LaunchScreen(background, fg.Image)
	})
}

// Typography renders text with the bundled font. Blank text and a
// non-positive size fall back to the defaults.
func (s *Studio) Typography(ctx context.Context, token, text string, fontSize int) (domain.DerivedAsset, error) {
	spec := domain.TypographySpec(text, fontSize)
	return s.render(ctx, token, spec, func(context.Context) (image.Image, error) {
		font, err := s.library.TypographyFont()
		if err != nil {
			return nil, err
		}
		return transform.RenderText(font, spec.Text, spec.FontSize)
	})
}

// Open returns a derived asset by token and filename.
func (s *Studio) Open(ctx context.Context, token, name string) (Object, error) {
	if !id.Valid(token) {
		return Object{}, fmt.Errorf("%w: invalid token", domain.ErrAssetNotFound)
	}
	name = storage.SanitizeFilename(name)
	data, err := s.store.ReadObject(ctx, storage.OutputKey(token, name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Object{}, fmt.Errorf("%w: %s/%s", domain.ErrAssetNotFound, token, name)
		}
		return Object{}, fmt.Errorf("open asset: %w", err)
	}
	return Object{Name: name, ContentType: contentTypeFor(name), Data: data}, nil
}

// Exists reports whether a derived asset is stored without reading it.
func (s *Studio) Exists(ctx context.Context, token, name string) (bool, error) {
	if !id.Valid(token) {
		return false, nil
	}
	ok, err := s.store.ObjectExists(ctx, storage.OutputKey(token, storage.SanitizeFilename(name)))
	if err != nil {
		return false, fmt.Errorf("stat asset: %w", err)
	}
	return ok, nil
}

func (s *Studio) Assets(ctx context.Context, token string) ([]domain.DerivedAsset, error) {
	if !id.Valid(token) {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrAssetNotFound)
	}
	list, err := s.catalog.ListAssets(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return list, nil
}

type output struct {
	data          []byte
	contentType   string
	width, height int
}

func (s *Studio) render(ctx context.Context, token string, spec domain.TransformSpec, fn func(context.Context) (image.Image, error)) (domain.DerivedAsset, error) {
	return s.run(ctx, token, spec, func(ctx context.Context) (output, error) {
		img, err := fn(ctx)
		if err != nil {
			return output{}, err
		}
		data, err := transform.EncodePNG(img)
		if err != nil {
			return output{}, err
		}
		b := img.Bounds()
		return output{data: data, contentType: transform.ContentTypePNG, width: b.Dx(), height: b.Dy()}, nil
	})
}

func (s *Studio) run(ctx context.Context, token string, spec domain.TransformSpec, fn func(context.Context) (output, error)) (asset domain.DerivedAsset, err error) {
	startedAt := time.Now()
	op := string(spec.Op)

	ctx, span := s.tracer.Start(ctx, "studio."+op, trace.WithAttributes(
		attribute.String("iconforge.token", token),
		attribute.String("iconforge.operation", op),
	))
	defer span.End()
	defer func() {
		s.metrics.operationsTotal.WithLabelValues(op, outcome(err)).Inc()
		s.metrics.operationDuration.WithLabelValues(op).Observe(time.Since(startedAt).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome(err))
			s.logFailure(token, op, err)
		}
	}()

	if !id.Valid(token) {
		return domain.DerivedAsset{}, fmt.Errorf("%w: invalid token %q", domain.ErrInvalidSpec, token)
	}
	if err := spec.Validate(); err != nil {
		return domain.DerivedAsset{}, err
	}

	out, err := fn(ctx)
	if err != nil {
		return domain.DerivedAsset{}, err
	}

	name := spec.OutputName()
	asset = domain.DerivedAsset{
		Token:       token,
		Operation:   spec.Op,
		Filename:    name,
		Key:         storage.OutputKey(token, name),
		ContentType: out.contentType,
		Width:       out.width,
		Height:      out.height,
		Bytes:       len(out.data),
		CreatedAt:   s.now(),
	}
	if err := s.save(ctx, asset, out.data); err != nil {
		return domain.DerivedAsset{}, err
	}

	s.publish(ctx, asset)
	span.SetAttributes(attribute.Int("iconforge.output_bytes", asset.Bytes))
	span.SetStatus(codes.Ok, "stored")
	s.logger.WithFields(logrus.Fields{
		"token":       token,
		"op":          op,
		"key":         asset.Key,
		"bytes":       asset.Bytes,
		"duration_ms": time.Since(startedAt).Milliseconds(),
	}).Info("derived asset stored")
	return asset, nil
}

// save writes one derived file and records it in the catalog.
func (s *Studio) save(ctx context.Context, asset domain.DerivedAsset, data []byte) error {
	if err := s.store.WriteObject(ctx, asset.Key, data, asset.ContentType); err != nil {
		return fmt.Errorf("save %s: %w", asset.Key, err)
	}
	if err := s.catalog.RecordAsset(ctx, asset); err != nil {
		return fmt.Errorf("record %s: %w", asset.Key, err)
	}
	s.metrics.outputBytesTotal.WithLabelValues(string(asset.Operation)).Add(float64(asset.Bytes))
	return nil
}

func (s *Studio) load(ctx context.Context, key string) (transform.Source, error) {
	data, err := s.store.ReadObject(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return transform.Source{}, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, key)
		}
		return transform.Source{}, fmt.Errorf("read source %s: %w", key, err)
	}
	return transform.Decode(data, s.opts.MaxPixels)
}

func (s *Studio) publish(ctx context.Context, asset domain.DerivedAsset) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeAssetCreated,
		Token:      asset.Token,
		Asset:      &asset,
		OccurredAt: asset.CreatedAt,
	})
	if err != nil {
		s.logger.WithError(err).WithField("key", asset.Key).Warn("asset event not published")
	}
}

// logFailure logs expected client errors at info and everything else at
// error so alerting only sees conversions and infrastructure faults.
func (s *Studio) logFailure(token, op string, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"token":   token,
		"op":      op,
		"outcome": outcome(err),
	}).WithError(err)

	switch {
	case errors.Is(err, domain.ErrNoFile),
		errors.Is(err, domain.ErrUnknownFilter),
		errors.Is(err, domain.ErrInvalidSpec),
		errors.Is(err, domain.ErrAssetNotFound),
		errors.Is(err, domain.ErrImageTooLarge):
		entry.Info("operation rejected")
	case errors.Is(err, domain.ErrUnavailable):
		entry.Warn("operation unavailable")
	default:
		entry.Error("operation failed")
	}
}

func contentTypeFor(name string) string {
	switch path.Ext(name) {
	case ".png":
		return transform.ContentTypePNG
	case ".zip":
		return archive.ContentType
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
