package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alexmullins/zip"
	"github.com/dunamismax/iconforge/internal/assets"
	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/dunamismax/iconforge/internal/events"
	"github.com/dunamismax/iconforge/internal/id"
	"github.com/dunamismax/iconforge/internal/logging"
	"github.com/dunamismax/iconforge/internal/storage"
	"github.com/dunamismax/iconforge/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type fixture struct {
	studio    *Studio
	objects   *storage.LocalStore
	catalog   *store.MemoryStore
	publisher *capturePublisher
	assetsDir string
}

func newFixture(t *testing.T, withAssets bool, opts Options) fixture {
	t.Helper()

	objects, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assetsDir := t.TempDir()
	if withAssets {
		writeAsset(t, assetsDir, assets.HomescreenMockupPath, encode(t, solid(600, 900, color.NRGBA{R: 255, A: 255})))
		writeAsset(t, assetsDir, assets.IPhoneFramePath, encode(t, solid(1000, 1900, color.NRGBA{A: 255})))
		writeAsset(t, assetsDir, assets.LaunchBackgroundPath, encode(t, solid(400, 800, color.NRGBA{R: 255, G: 255, B: 255, A: 255})))
		writeAsset(t, assetsDir, assets.TypographyFontPath, goregular.TTF)
	}

	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}

	catalog := store.NewMemoryStore()
	publisher := &capturePublisher{}
	studio := NewStudio(objects, catalog, assets.NewLibrary(assetsDir, 0), publisher, logging.Discard(), opts)
	return fixture{studio: studio, objects: objects, catalog: catalog, publisher: publisher, assetsDir: assetsDir}
}

func (f fixture) stage(t *testing.T, token, name string, data []byte) string {
	t.Helper()

	key := storage.UploadKey(token, name)
	require.NoError(t, f.objects.WriteObject(context.Background(), key, data, "application/octet-stream"))
	return key
}

func TestConvertStoresExactSize(t *testing.T) {
	f := newFixture(t, false, Options{})
	token := id.New()
	key := f.stage(t, token, "logo.png", encode(t, solid(300, 200, color.NRGBA{G: 200, A: 255})))

	asset, err := f.studio.Convert(context.Background(), token, key, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "output/"+token+"/converted_image.png", asset.Key)
	assert.Equal(t, 1024, asset.Width)
	assert.Equal(t, 1024, asset.Height)

	obj, err := f.studio.Open(context.Background(), token, "converted_image.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)
	cfg, err := png.DecodeConfig(bytes.NewReader(obj.Data))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)

	listed, err := f.studio.Assets(context.Background(), token)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, domain.OpConvert, listed[0].Operation)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.TypeAssetCreated, f.publisher.events[0].Type)
	assert.Equal(t, token, f.publisher.events[0].Token)
}

func TestConvertCustomSize(t *testing.T) {
	f := newFixture(t, false, Options{})
	token := id.New()
	key := f.stage(t, token, "logo.png", encode(t, solid(30, 30, color.NRGBA{A: 255})))

	asset, err := f.studio.Convert(context.Background(), token, key, 320, 48)
	require.NoError(t, err)
	assert.Equal(t, 320, asset.Width)
	assert.Equal(t, 48, asset.Height)
}

func TestConsecutiveConversionsDoNotCollide(t *testing.T) {
	f := newFixture(t, false, Options{})
	first, second := id.New(), id.New()
	require.NotEqual(t, first, second)

	a, err := f.studio.Convert(context.Background(), first, f.stage(t, first, "a.png", encode(t, solid(10, 10, color.NRGBA{R: 255, A: 255}))), 0, 0)
	require.NoError(t, err)
	b, err := f.studio.Convert(context.Background(), second, f.stage(t, second, "b.png", encode(t, solid(10, 10, color.NRGBA{B: 255, A: 255}))), 0, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)

	objA, err := f.studio.Open(context.Background(), first, a.Filename)
	require.NoError(t, err)
	objB, err := f.studio.Open(context.Background(), second, b.Filename)
	require.NoError(t, err)
	assert.NotEqual(t, objA.Data, objB.Data)
}

func TestIconSetArchivesFifteenIcons(t *testing.T) {
	f := newFixture(t, false, Options{})
	token := id.New()
	key := f.stage(t, token, "logo.png", encode(t, solid(64, 64, color.NRGBA{R: 40, G: 90, B: 200, A: 255})))

	asset, err := f.studio.IconSet(context.Background(), token, key)
	require.NoError(t, err)
	assert.Equal(t, domain.IconSetArchiveName, asset.Filename)
	assert.Equal(t, "application/zip", asset.ContentType)

	obj, err := f.studio.Open(context.Background(), token, domain.IconSetArchiveName)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(obj.Data), int64(len(obj.Data)))
	require.NoError(t, err)
	require.Len(t, zr.File, len(domain.IconSizeTable))

	for i, file := range zr.File {
		assert.Equal(t, domain.IconSizeTable[i].Filename(), file.Name)
	}

	rc, err := zr.File[13].Open()
	require.NoError(t, err)
	defer rc.Close()
	cfg, err := png.DecodeConfig(rc)
	require.NoError(t, err)
	assert.Equal(t, 167, cfg.Width)
	assert.Equal(t, 167, cfg.Height)
}

func TestIconSetStoresEachIcon(t *testing.T) {
	f := newFixture(t, false, Options{})
	token := id.New()
	key := f.stage(t, token, "logo.png", encode(t, solid(64, 64, color.NRGBA{R: 200, A: 255})))

	_, err := f.studio.IconSet(context.Background(), token, key)
	require.NoError(t, err)

	obj, err := f.studio.Open(context.Background(), token, "icon_83p5x83p5@2x.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)
	cfg, err := png.DecodeConfig(bytes.NewReader(obj.Data))
	require.NoError(t, err)
	assert.Equal(t, 167, cfg.Width)
	assert.Equal(t, 167, cfg.Height)

	listed, err := f.studio.Assets(context.Background(), token)
	require.NoError(t, err)
	require.Len(t, listed, len(domain.IconSizeTable)+1)
	for i, size := range domain.IconSizeTable {
		assert.Equal(t, size.Filename(), listed[i].Filename)
		assert.Equal(t, size.Pixels(), listed[i].Width)
		assert.Equal(t, "output/"+token+"/"+size.Filename(), listed[i].Key)
	}
	assert.Equal(t, domain.IconSetArchiveName, listed[len(listed)-1].Filename)
}

func TestIconSetHonorsArchivePassword(t *testing.T) {
	f := newFixture(t, false, Options{ArchivePassword: "s3cret"})
	token := id.New()
	key := f.stage(t, token, "logo.png", encode(t, solid(32, 32, color.NRGBA{A: 255})))

	_, err := f.studio.IconSet(context.Background(), token, key)
	require.NoError(t, err)

	obj, err := f.studio.Open(context.Background(), token, domain.IconSetArchiveName)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(obj.Data), int64(len(obj.Data)))
	require.NoError(t, err)
	assert.True(t, zr.File[0].IsEncrypted())
}

func TestFilterRejectsUnknownKindWithoutWriting(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, false, Options{Registerer: reg})
	token := id.New()
	key := f.stage(t, token, "logo.png", encode(t, solid(20, 20, color.NRGBA{A: 255})))

	_, err := f.studio.Filter(context.Background(), token, key, "posterize")
	assert.ErrorIs(t, err, domain.ErrUnknownFilter)

	listed, err := f.studio.Assets(context.Background(), token)
	require.NoError(t, err)
	assert.Empty(t, listed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.studio.metrics.operationsTotal.WithLabelValues("filter", "invalid")))

	asset, err := f.studio.Filter(context.Background(), token, key, domain.FilterBlur)
	require.NoError(t, err)
	assert.Equal(t, "filtered_blur.png", asset.Filename)
}

func TestSourceErrorsMapToDomain(t *testing.T) {
	f := newFixture(t, false, Options{MaxPixels: 100})
	token := id.New()

	_, err := f.studio.Convert(context.Background(), token, storage.UploadKey(token, "missing.png"), 0, 0)
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)

	garbage := f.stage(t, token, "garbage.png", []byte("definitely not an image"))
	_, err = f.studio.NormalizeColor(context.Background(), token, garbage)
	assert.ErrorIs(t, err, domain.ErrConversion)

	// A bare GIF header declaring 25120x29813 pixels is refused from the
	// header alone.
	huge := f.stage(t, token, "huge.gif", []byte("GIF89a but not really"))
	_, err = f.studio.NormalizeColor(context.Background(), token, huge)
	assert.ErrorIs(t, err, domain.ErrImageTooLarge)

	large := f.stage(t, token, "large.png", encode(t, solid(11, 10, color.NRGBA{A: 255})))
	_, err = f.studio.Convert(context.Background(), token, large, 0, 0)
	assert.ErrorIs(t, err, domain.ErrImageTooLarge)

	_, err = f.studio.Convert(context.Background(), "not-a-token", large, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidSpec)
}

func TestCompositesWithoutBundledAssetsAreUnavailable(t *testing.T) {
	f := newFixture(t, false, Options{})
	token := id.New()
	key := f.stage(t, token, "shot.png", encode(t, solid(50, 100, color.NRGBA{G: 255, A: 255})))

	_, err := f.studio.FrameScreenshot(context.Background(), token, key)
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	_, err = f.studio.LaunchScreen(context.Background(), token, key)
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	_, err = f.studio.Convert(context.Background(), token, key, 0, 0)
	require.NoError(t, err)
	_, err = f.studio.HomescreenMockup(context.Background(), token, "converted_image.png")
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	_, err = f.studio.Typography(context.Background(), token, "", 0)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestCompositesWithBundledAssets(t *testing.T) {
	f := newFixture(t, true, Options{})
	token := id.New()
	key := f.stage(t, token, "shot.png", encode(t, solid(50, 100, color.NRGBA{G: 255, A: 255})))

	framed, err := f.studio.FrameScreenshot(context.Background(), token, key)
	require.NoError(t, err)
	assert.Equal(t, 1000, framed.Width)
	assert.Equal(t, 1900, framed.Height)

	launch, err := f.studio.LaunchScreen(context.Background(), token, key)
	require.NoError(t, err)
	assert.Equal(t, "launch_screen.png", launch.Filename)
	assert.Equal(t, 400, launch.Width)

	_, err = f.studio.Convert(context.Background(), token, key, 0, 0)
	require.NoError(t, err)
	mockup, err := f.studio.HomescreenMockup(context.Background(), token, "converted_image.png")
	require.NoError(t, err)
	assert.Equal(t, "homescreen_preview.png", mockup.Filename)

	_, err = f.studio.HomescreenMockup(context.Background(), token, "nope.png")
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)

	text, err := f.studio.Typography(context.Background(), token, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1200, text.Width)
	assert.Equal(t, 200, text.Height)

	listed, err := f.studio.Assets(context.Background(), token)
	require.NoError(t, err)
	assert.Len(t, listed, 5)
}

func TestOpenRejectsUnknownAssets(t *testing.T) {
	f := newFixture(t, false, Options{})

	_, err := f.studio.Open(context.Background(), "../../etc", "passwd")
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)

	_, err = f.studio.Open(context.Background(), id.New(), "converted_image.png")
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)

	_, err = f.studio.Assets(context.Background(), "bogus")
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)
}

func TestExistsChecksStoredAssets(t *testing.T) {
	f := newFixture(t, false, Options{})
	token := id.New()
	key := f.stage(t, token, "logo.png", encode(t, solid(8, 8, color.NRGBA{A: 255})))

	ok, err := f.studio.Exists(context.Background(), token, "converted_image.png")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.studio.Convert(context.Background(), token, key, 16, 16)
	require.NoError(t, err)
	ok, err = f.studio.Exists(context.Background(), token, "converted_image.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.studio.Exists(context.Background(), "../../etc", "passwd")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOutcomeLabels(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "no_file", outcome(domain.ErrNoFile))
	assert.Equal(t, "unavailable", outcome(domain.ErrUnavailable))
	assert.Equal(t, "conversion_error", outcome(domain.ErrConversion))
	assert.Equal(t, "error", outcome(os.ErrPermission))
}

func writeAsset(t *testing.T, dir, rel string, data []byte) {
	t.Helper()

	full := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
