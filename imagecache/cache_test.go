package imagecache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pspoerri/imgbuf"
	"github.com/pspoerri/imgbuf/pix"
)

// The "fkc" test format serves synthetic images whose channel c of pixel
// (x,y) is x + width*y + 1000*c, so any region fetched through the cache can
// be checked against closed-form values.
type synthImage struct {
	width, height, nch int
	format             pix.Type
}

var (
	synthMu     sync.Mutex
	synthImages = map[string]synthImage{}
)

func registerSynth(name string, width, height, nch int, format pix.Type) {
	synthMu.Lock()
	synthImages[name] = synthImage{width: width, height: height, nch: nch, format: format}
	synthMu.Unlock()
}

func synthValue(img synthImage, x, y, c int) float32 {
	return float32(x + img.width*y + 1000*c)
}

func init() {
	imgbuf.RegisterInput("fkc", []string{"fkc"}, func(name string) (imgbuf.ImageInput, error) {
		synthMu.Lock()
		img, ok := synthImages[name]
		synthMu.Unlock()
		if !ok {
			return nil, fmt.Errorf("no synthetic image %q", name)
		}
		return &synthInput{img: img}, nil
	})
}

type synthInput struct {
	img synthImage
}

func (in *synthInput) Spec() *imgbuf.ImageSpec {
	return imgbuf.NewImageSpec(in.img.width, in.img.height, in.img.nch, in.img.format)
}

func (in *synthInput) SeekSubimage(subimage, miplevel int) bool {
	return subimage == 0 && miplevel == 0
}

func (in *synthInput) ReadImage(format pix.Type, dst []byte) error {
	esz := format.Size()
	i := 0
	for y := 0; y < in.img.height; y++ {
		for x := 0; x < in.img.width; x++ {
			for c := 0; c < in.img.nch; c++ {
				pix.PutFloat(format, dst[i*esz:], synthValue(in.img, x, y, c))
				i++
			}
		}
	}
	return nil
}

func (in *synthInput) Close() error { return nil }

func testCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	return NewCache(cfg)
}

func TestSpecRewritesFormatAndTiling(t *testing.T) {
	registerSynth("spec.fkc", 10, 6, 3, pix.UInt8)
	c := testCache(t, Config{MaxMemoryMB: 16, TileSize: 4, ForceFloat: true})

	spec, err := c.Spec("spec.fkc", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Format != pix.Float {
		t.Errorf("Spec format = %v, want float (ForceFloat)", spec.Format)
	}
	if spec.TileWidth != 4 || spec.TileHeight != 4 {
		t.Errorf("tile dims = %dx%d, want 4x4", spec.TileWidth, spec.TileHeight)
	}

	native, err := c.NativeSpec("spec.fkc", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if native.Format != pix.UInt8 {
		t.Errorf("NativeSpec format = %v, want uint8", native.Format)
	}

	info, err := c.ImageInfo("spec.fkc")
	if err != nil {
		t.Fatal(err)
	}
	if info.Subimages != 1 || info.CachedType != pix.Float || info.FileFormat != "fkc" {
		t.Errorf("ImageInfo = %+v", info)
	}
	// The whole inquiry opened the file exactly once.
	if got := c.Stats().FilesOpened; got != 1 {
		t.Errorf("FilesOpened = %d, want 1", got)
	}
}

func TestNativeStorageWithoutForceFloat(t *testing.T) {
	registerSynth("native.fkc", 4, 4, 1, pix.UInt16)
	c := testCache(t, Config{MaxMemoryMB: 16, TileSize: 4})
	spec, err := c.Spec("native.fkc", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Format != pix.UInt16 {
		t.Errorf("Spec format = %v, want native uint16", spec.Format)
	}
}

func TestTileMissPopulatesThenHits(t *testing.T) {
	registerSynth("tiles.fkc", 8, 8, 1, pix.Float)
	c := testCache(t, Config{MaxMemoryMB: 16, TileSize: 4, ForceFloat: true})

	tile, err := c.Tile("tiles.fkc", 0, 0, 5, 6, 0)
	if err != nil {
		t.Fatal(err)
	}
	roi := tile.ROI()
	want := imgbuf.ROI{XBegin: 4, XEnd: 8, YBegin: 4, YEnd: 8, ZBegin: 0, ZEnd: 1, ChBegin: 0, ChEnd: 1}
	if roi != want {
		t.Errorf("tile ROI = %v, want %v", roi, want)
	}
	// Pixel (5,6) inside the tile.
	idx := (6-roi.YBegin)*roi.Width() + (5 - roi.XBegin)
	got := pix.GetFloat(pix.Float, tile.Pixels()[idx*4:])
	if got != 5+8*6 {
		t.Errorf("tile pixel (5,6) = %v, want %v", got, 5+8*6)
	}
	tile.Release()

	// The miss decoded the whole subimage, so the neighboring tile hits.
	tile2, err := c.Tile("tiles.fkc", 0, 0, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	tile2.Release()

	st := c.Stats()
	if st.TileMisses != 1 {
		t.Errorf("TileMisses = %d, want 1", st.TileMisses)
	}
	if st.TileHits != 1 {
		t.Errorf("TileHits = %d, want 1", st.TileHits)
	}
}

func TestGetPixelsAcrossTileBoundaries(t *testing.T) {
	registerSynth("gp.fkc", 8, 8, 2, pix.Float)
	c := testCache(t, Config{MaxMemoryMB: 16, TileSize: 4, ForceFloat: true})
	img := synthImage{width: 8, height: 8, nch: 2, format: pix.Float}

	// A region straddling all four tiles.
	roi := imgbuf.NewROI(2, 6, 2, 6, 2)
	dst := make([]byte, roi.NPixels()*2*4)
	if err := c.GetPixels("gp.fkc", 0, 0, roi, pix.Float, dst); err != nil {
		t.Fatal(err)
	}
	i := 0
	for y := roi.YBegin; y < roi.YEnd; y++ {
		for x := roi.XBegin; x < roi.XEnd; x++ {
			for ch := 0; ch < 2; ch++ {
				got := pix.GetFloat(pix.Float, dst[i*4:])
				if want := synthValue(img, x, y, ch); got != want {
					t.Fatalf("pixel (%d,%d) ch %d = %v, want %v", x, y, ch, got, want)
				}
				i++
			}
		}
	}
}

func TestGetPixelsChannelSubsetAndConversion(t *testing.T) {
	registerSynth("gpc.fkc", 4, 1, 2, pix.Float)
	c := testCache(t, Config{MaxMemoryMB: 16, TileSize: 4, ForceFloat: true})

	roi := imgbuf.NewROI(0, 4, 0, 1, 2)
	roi.ChBegin = 1 // second channel only: values 1000 + x
	dst := make([]byte, 4*8)
	if err := c.GetPixels("gpc.fkc", 0, 0, roi, pix.Double, dst); err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 4; x++ {
		got := pix.GetFloat(pix.Double, dst[x*8:])
		if want := float32(1000 + x); got != want {
			t.Errorf("pixel %d = %v, want %v", x, got, want)
		}
	}
}

func TestEvictionUnderBudget(t *testing.T) {
	// 256x320 float, 4 channels = 1.25 MiB of pixels; with a 1 MiB budget the
	// insert loop must evict earlier tiles while populating.
	registerSynth("big.fkc", 256, 320, 4, pix.Float)
	c := testCache(t, Config{MaxMemoryMB: 1, TileSize: 64, ForceFloat: true})

	tile, err := c.Tile("big.fkc", 0, 0, 255, 255, 0)
	if err != nil {
		t.Fatal(err)
	}
	tile.Release()

	st := c.Stats()
	if st.Evictions == 0 {
		t.Error("no evictions despite exceeding the byte budget")
	}
	c.mu.Lock()
	used, max := c.used, c.maxBytes
	c.mu.Unlock()
	if used > max {
		t.Errorf("cached bytes %d exceed budget %d", used, max)
	}

	// Evicted tiles are refetched transparently.
	tile2, err := c.Tile("big.fkc", 0, 0, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	got := pix.GetFloat(pix.Float, tile2.Pixels())
	if got != 0 {
		t.Errorf("refetched tile pixel (0,0) = %v, want 0", got)
	}
	tile2.Release()
}

func TestReferencedTilesSurviveEviction(t *testing.T) {
	registerSynth("held.fkc", 256, 320, 4, pix.Float)
	c := testCache(t, Config{MaxMemoryMB: 1, TileSize: 64, ForceFloat: true})

	held, err := c.Tile("held.fkc", 0, 0, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Force pressure by touching the far corner again after eviction churn.
	other, err := c.Tile("held.fkc", 0, 0, 255, 255, 0)
	if err != nil {
		t.Fatal(err)
	}
	other.Release()

	// The held tile's pixels must still be intact.
	if held.Pixels() == nil {
		t.Fatal("held tile lost its pixels")
	}
	got := pix.GetFloat(pix.Float, held.Pixels())
	if got != 0 {
		t.Errorf("held tile pixel (0,0) = %v, want 0", got)
	}
	held.Release()
}

func TestInvalidateForcesReopen(t *testing.T) {
	registerSynth("inv.fkc", 4, 4, 1, pix.Float)
	c := testCache(t, Config{MaxMemoryMB: 16, TileSize: 4, ForceFloat: true})

	if _, err := c.Spec("inv.fkc", 0, 0); err != nil {
		t.Fatal(err)
	}
	tile, err := c.Tile("inv.fkc", 0, 0, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	tile.Release()
	opened := c.Stats().FilesOpened

	c.Invalidate("inv.fkc")
	if _, err := c.Spec("inv.fkc", 0, 0); err != nil {
		t.Fatal(err)
	}
	if got := c.Stats().FilesOpened; got != opened+1 {
		t.Errorf("FilesOpened = %d after Invalidate, want %d", got, opened+1)
	}
	// Old tiles are gone; the next access misses.
	misses := c.Stats().TileMisses
	tile2, err := c.Tile("inv.fkc", 0, 0, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	tile2.Release()
	if got := c.Stats().TileMisses; got != misses+1 {
		t.Errorf("TileMisses = %d after Invalidate, want %d", got, misses+1)
	}
}

func TestAddFileAppliesOverrides(t *testing.T) {
	registerSynth("add.fkc", 4, 4, 1, pix.Float)
	c := testCache(t, Config{MaxMemoryMB: 16, TileSize: 4, ForceFloat: true})

	var hint imgbuf.ImageSpec
	hint.SetAttr("ColorSpace", "linear")
	if err := c.AddFile("add.fkc", &hint); err != nil {
		t.Fatal(err)
	}
	spec, err := c.Spec("add.fkc", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := spec.AttrString("ColorSpace", ""); got != "linear" {
		t.Errorf("override attr = %q, want %q", got, "linear")
	}
	// AddFile after the file is open is refused.
	if err := c.AddFile("add.fkc", &hint); err == nil {
		t.Error("AddFile succeeded on an already-open file")
	}
}

func TestMissingFileError(t *testing.T) {
	c := testCache(t, Config{MaxMemoryMB: 16, TileSize: 4})
	if _, err := c.Spec("nope.fkc", 0, 0); err == nil {
		t.Error("Spec on a missing file succeeded")
	}
	if _, err := c.ImageInfo("nope.fkc"); err == nil {
		t.Error("ImageInfo on a missing file succeeded")
	}
	// The failure is remembered, not retried on every call.
	if _, err := c.Spec("nope.fkc", 1, 0); err == nil {
		t.Error("Spec on a missing subimage succeeded")
	}
}

func TestBufferThroughRealCache(t *testing.T) {
	registerSynth("e2e.fkc", 8, 8, 3, pix.UInt8)
	c := testCache(t, Config{MaxMemoryMB: 16, TileSize: 4, ForceFloat: true})
	img := synthImage{width: 8, height: 8, nch: 3, format: pix.UInt8}

	b := imgbuf.NewBufferFile("e2e.fkc", 0, 0, c)
	if err := b.Read(0, 0, false, pix.Unknown, nil); err != nil {
		t.Fatal(err)
	}
	if !b.CachedPixels() {
		t.Fatalf("storage = %v, want cache-backed", b.Storage())
	}
	got := make([]float32, 3)
	b.GetPixel(5, 2, 0, got, imgbuf.WrapBlack)
	for ch := 0; ch < 3; ch++ {
		if want := synthValue(img, 5, 2, ch); got[ch] != want {
			t.Errorf("channel %d = %v, want %v", ch, got[ch], want)
		}
	}
}
