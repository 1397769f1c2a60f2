package imgbuf

import (
	"testing"

	"github.com/pspoerri/imgbuf/internal/memtrack"
	"github.com/pspoerri/imgbuf/pix"
)

func TestNewBufferIsUninitialized(t *testing.T) {
	b := New()
	if b.Initialized() {
		t.Error("New() buffer reports Initialized")
	}
	if b.Storage() != StorageUninitialized {
		t.Errorf("Storage() = %v, want %v", b.Storage(), StorageUninitialized)
	}
	if b.LocalPixels() != nil {
		t.Error("LocalPixels() != nil on uninitialized buffer")
	}
}

func TestNewBufferSpecAllocatesZeroedLocal(t *testing.T) {
	b := NewBufferSpec(NewImageSpec(4, 3, 2, pix.Float))
	if b.HasError() {
		t.Fatalf("unexpected error: %s", b.GetError(true))
	}
	if b.Storage() != StorageLocal {
		t.Fatalf("Storage() = %v, want %v", b.Storage(), StorageLocal)
	}
	if !b.Initialized() {
		t.Error("buffer not Initialized after ResetSpec")
	}
	px := b.LocalPixels()
	if want := int64(4 * 3 * 2 * 4); int64(len(px)) != want {
		t.Fatalf("len(LocalPixels()) = %d, want %d", len(px), want)
	}
	for i, v := range px {
		if v != 0 {
			t.Fatalf("pixel byte %d = %d, want 0", i, v)
		}
	}
}

func TestWrapUsesAppStorageWithoutCopying(t *testing.T) {
	spec := NewImageSpec(2, 2, 1, pix.UInt8)
	data := []byte{10, 20, 30, 40}
	b, err := Wrap(spec, data)
	if err != nil {
		t.Fatal(err)
	}
	if b.Storage() != StorageApp {
		t.Fatalf("Storage() = %v, want %v", b.Storage(), StorageApp)
	}
	// Mutation through the buffer lands in the caller's slice.
	if !b.SetPixel(0, 0, 0, []float32{1}) {
		t.Fatal("SetPixel failed")
	}
	if data[0] != 255 {
		t.Errorf("caller slice byte 0 = %d, want 255", data[0])
	}

	if _, err := Wrap(spec, data[:3]); err == nil {
		t.Error("Wrap accepted undersized data")
	}
}

func TestAllocationFailureLeavesBufferUninitialized(t *testing.T) {
	memtrack.SetLimit(memtrack.Used() + 1024)
	defer memtrack.SetLimit(0)

	b := NewBufferSpec(NewImageSpec(1024, 1024, 4, pix.Float))
	if b.Storage() != StorageUninitialized {
		t.Errorf("Storage() = %v, want %v after budget failure", b.Storage(), StorageUninitialized)
	}
	if !b.HasError() {
		t.Error("no error recorded for failed allocation")
	}
	if b.LocalPixels() != nil {
		t.Error("LocalPixels() != nil after failed allocation")
	}
	// The failed reservation must not leak accounted bytes.
	small := NewBufferSpec(NewImageSpec(4, 4, 1, pix.UInt8))
	if small.Storage() != StorageLocal {
		t.Errorf("small allocation failed after budget error: %s", small.GetError(true))
	}
}

func TestClearReleasesTrackedMemory(t *testing.T) {
	before := memtrack.Used()
	b := NewBufferSpec(NewImageSpec(16, 16, 4, pix.Float))
	if got := memtrack.Used(); got != before+16*16*4*4 {
		t.Fatalf("Used() = %d after alloc, want %d", got, before+16*16*4*4)
	}
	b.Clear()
	if got := memtrack.Used(); got != before {
		t.Errorf("Used() = %d after Clear, want %d", got, before)
	}
	if b.Initialized() {
		t.Error("buffer still Initialized after Clear")
	}
}

func TestBufferSurvivesRepeatedResets(t *testing.T) {
	b := NewBufferSpec(NewImageSpec(2, 2, 1, pix.Float))
	if b.Storage() != StorageLocal {
		t.Fatalf("Storage() = %v, want %v", b.Storage(), StorageLocal)
	}

	b.Clear()
	if b.Storage() != StorageUninitialized || b.Initialized() {
		t.Fatalf("Clear left storage %v, Initialized %v", b.Storage(), b.Initialized())
	}

	// The same buffer must be fully reusable through every Reset flavor.
	b.Errorf("stale message")
	b.ResetSpec(NewImageSpec(4, 4, 3, pix.UInt8))
	if b.Storage() != StorageLocal {
		t.Fatalf("Storage() after ResetSpec = %v, want %v", b.Storage(), StorageLocal)
	}
	if b.HasError() {
		t.Errorf("ResetSpec kept stale errors: %q", b.GetError(true))
	}
	if s := b.Spec(); s.Width != 4 || s.NChannels != 3 {
		t.Errorf("spec after ResetSpec = %dx%d %dch", s.Width, s.Height, s.NChannels)
	}

	b.ResetFile("reuse.mem", 0, 0, nil)
	if b.Storage() != StorageUninitialized || b.Name() != "reuse.mem" {
		t.Errorf("ResetFile left storage %v, name %q", b.Storage(), b.Name())
	}

	data := make([]byte, 4)
	if err := b.ResetWrapped(NewImageSpec(2, 2, 1, pix.UInt8), data); err != nil {
		t.Fatal(err)
	}
	if b.Storage() != StorageApp || b.Name() != "" {
		t.Errorf("ResetWrapped left storage %v, name %q", b.Storage(), b.Name())
	}
	b.Clear()
	b.Clear() // idempotent
}

func TestSpecMaterializesLazilyAndOnce(t *testing.T) {
	f := registerFakeFile("lazy.mem", NewImageSpec(4, 4, 3, pix.UInt8), gradientPixels(4, 4, 3, 0))
	cache := newFakeCache(pix.Float)

	b := NewBufferFile("lazy.mem", 0, 0, cache)
	if cache.infoCalls.Load() != 0 {
		t.Fatal("constructor touched the file")
	}

	s := b.Spec()
	if s.Width != 4 || s.NChannels != 3 {
		t.Fatalf("Spec() = %dx%d %dch, want 4x4 3ch", s.Width, s.Height, s.NChannels)
	}
	if s.Format != pix.Float {
		t.Errorf("Spec().Format = %v, want cache storage type %v", s.Format, pix.Float)
	}
	if b.NativeSpec().Format != pix.UInt8 {
		t.Errorf("NativeSpec().Format = %v, want %v", b.NativeSpec().Format, pix.UInt8)
	}

	// Repeated descriptor reads must not re-resolve.
	b.Spec()
	b.FileFormatName()
	if n := cache.infoCalls.Load(); n != 1 {
		t.Errorf("ImageInfo called %d times, want 1", n)
	}
	if got := b.FileFormatName(); got != "mem" {
		t.Errorf("FileFormatName() = %q, want %q", got, "mem")
	}
	if f.opens.Load() != 0 {
		t.Error("plugin opened directly despite cache being attached")
	}
}

func TestSpecWithoutCacheGoesThroughPlugin(t *testing.T) {
	f := registerFakeFile("direct.mem", NewImageSpec(5, 2, 1, pix.UInt16), gradientPixels(5, 2, 1, 0))
	b := NewBufferFile("direct.mem", 0, 0, nil)
	s := b.Spec()
	if s.Width != 5 || s.Format != pix.UInt16 {
		t.Fatalf("Spec() = %dx%d %v, want 5x2 uint16", s.Width, s.Height, s.Format)
	}
	if b.NSubimages() != 1 {
		t.Errorf("NSubimages() = %d, want 1", b.NSubimages())
	}
	if f.opens.Load() == 0 {
		t.Error("plugin never opened")
	}
}

func TestReadCacheShortCircuit(t *testing.T) {
	f := registerFakeFile("cached.mem", NewImageSpec(4, 4, 1, pix.Float), gradientPixels(4, 4, 1, 1))
	cache := newFakeCache(pix.Float)
	b := NewBufferFile("cached.mem", 0, 0, cache)

	if err := b.Read(0, 0, false, pix.Unknown, nil); err != nil {
		t.Fatal(err)
	}
	if b.Storage() != StorageCache {
		t.Fatalf("Storage() = %v, want %v", b.Storage(), StorageCache)
	}
	if !b.CachedPixels() {
		t.Error("CachedPixels() = false")
	}
	if b.LocalPixels() != nil {
		t.Error("cache-backed buffer exposes local pixels")
	}
	if f.reads.Load() != 0 {
		t.Error("cache short-circuit still decoded the file")
	}

	// Pixels are served through the cache's tile handles.
	if got := b.GetChannel(2, 1, 0, 0, WrapBlack); got != 7 {
		t.Errorf("GetChannel(2,1) = %v, want 7", got)
	}
	if cache.tileCalls.Load() == 0 {
		t.Error("pixel access never consulted the cache")
	}
}

func TestReadConvertBypassesCache(t *testing.T) {
	f := registerFakeFile("bypass.mem", NewImageSpec(4, 4, 1, pix.UInt8), gradientPixels(4, 4, 1, 0))
	cache := newFakeCache(pix.Float)
	b := NewBufferFile("bypass.mem", 0, 0, cache)

	// uint16 is not what the cache stores; the read must go straight to the
	// plugin at full precision.
	if err := b.Read(0, 0, false, pix.UInt16, nil); err != nil {
		t.Fatal(err)
	}
	if b.Storage() != StorageLocal {
		t.Fatalf("Storage() = %v, want %v", b.Storage(), StorageLocal)
	}
	if b.Spec().Format != pix.UInt16 {
		t.Errorf("Spec().Format = %v, want %v", b.Spec().Format, pix.UInt16)
	}
	if f.reads.Load() != 1 {
		t.Errorf("plugin ReadImage called %d times, want 1", f.reads.Load())
	}
	if cache.pixelCalls.Load() != 0 {
		t.Errorf("cache GetPixels called %d times, want 0", cache.pixelCalls.Load())
	}
}

func TestReadIsIdempotentUntilForced(t *testing.T) {
	f := registerFakeFile("idem.mem", NewImageSpec(4, 4, 1, pix.Float), gradientPixels(4, 4, 1, 0))
	b := NewBufferFile("idem.mem", 0, 0, nil)

	if err := b.Read(0, 0, false, pix.Unknown, nil); err != nil {
		t.Fatal(err)
	}
	reads := f.reads.Load()
	if reads != 1 {
		t.Fatalf("first Read decoded %d times, want 1", reads)
	}
	for i := 0; i < 3; i++ {
		if err := b.Read(0, 0, false, pix.Unknown, nil); err != nil {
			t.Fatal(err)
		}
	}
	if f.reads.Load() != reads {
		t.Errorf("repeated Read re-decoded the file (%d reads)", f.reads.Load())
	}
	if err := b.Read(0, 0, true, pix.Unknown, nil); err != nil {
		t.Fatal(err)
	}
	if f.reads.Load() != reads+1 {
		t.Errorf("forced Read did not re-decode (%d reads)", f.reads.Load())
	}
}

func TestSetPixelPromotesCacheBackedBuffer(t *testing.T) {
	registerFakeFile("promote.mem", NewImageSpec(4, 4, 1, pix.Float), gradientPixels(4, 4, 1, 0))
	cache := newFakeCache(pix.Float)
	b := NewBufferFile("promote.mem", 0, 0, cache)
	if err := b.Read(0, 0, false, pix.Unknown, nil); err != nil {
		t.Fatal(err)
	}
	if b.Storage() != StorageCache {
		t.Fatalf("precondition: Storage() = %v, want %v", b.Storage(), StorageCache)
	}

	if !b.SetPixel(1, 1, 0, []float32{-9}) {
		t.Fatal("SetPixel failed")
	}
	if b.Storage() != StorageLocal {
		t.Errorf("Storage() = %v after mutation, want %v", b.Storage(), StorageLocal)
	}
	if got := b.GetChannel(1, 1, 0, 0, WrapBlack); got != -9 {
		t.Errorf("mutated pixel = %v, want -9", got)
	}
	// Neighboring pixels survived the promotion read.
	if got := b.GetChannel(2, 1, 0, 0, WrapBlack); got != 6 {
		t.Errorf("neighbor pixel = %v, want 6", got)
	}
	// Once local, the buffer never consults the cache again.
	tiles := cache.tileCalls.Load()
	b.GetChannel(3, 3, 0, 0, WrapBlack)
	if cache.tileCalls.Load() != tiles {
		t.Error("local buffer still consulted the cache")
	}
}

func TestReadChannelsSubset(t *testing.T) {
	registerFakeFile("subset.mem", NewImageSpec(2, 2, 4, pix.Float), gradientPixels(2, 2, 4, 0))
	b := NewBufferFile("subset.mem", 0, 0, nil)

	if err := b.ReadChannels(0, 0, 1, 3, false, pix.Unknown, nil); err != nil {
		t.Fatal(err)
	}
	s := b.Spec()
	if s.NChannels != 2 {
		t.Fatalf("NChannels = %d, want 2", s.NChannels)
	}
	if s.ChannelNames[0] != "G" || s.ChannelNames[1] != "B" {
		t.Errorf("ChannelNames = %v, want [G B]", s.ChannelNames)
	}
	// Channel 0 of the subset is source channel 1: value 100 + x + 2y.
	if got := b.GetChannel(1, 0, 0, 0, WrapBlack); got != 101 {
		t.Errorf("subset channel 0 at (1,0) = %v, want 101", got)
	}
	if got := b.GetChannel(1, 0, 0, 1, WrapBlack); got != 201 {
		t.Errorf("subset channel 1 at (1,0) = %v, want 201", got)
	}
}

func TestReadProgressCancellationKeepsFetchedChunks(t *testing.T) {
	const h = 200 // three 64-row chunks plus a remainder
	registerFakeFile("cancel.mem", NewImageSpec(2, h, 2, pix.Float), gradientPixels(2, h, 2, 0))
	cache := newFakeCache(pix.Float)
	b := NewBufferFile("cancel.mem", 0, 0, cache)

	var calls int
	progress := func(done, total int64) bool {
		calls++
		if total != h {
			t.Errorf("progress total = %d, want %d", total, h)
		}
		return true // cancel immediately
	}
	// A channel subset forces materialization through the cache path.
	if err := b.ReadChannels(0, 0, 0, 1, false, pix.Unknown, progress); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("progress called %d times, want 1", calls)
	}
	if got := cache.pixelCalls.Load(); got != 1 {
		t.Errorf("cache fetched %d chunks after cancellation, want 1", got)
	}
	// The fetched chunk is kept and readable.
	if got := b.GetChannel(1, 0, 0, 0, WrapBlack); got != 1 {
		t.Errorf("pixel from fetched chunk = %v, want 1", got)
	}
}

func TestWriteConvertsAndInvalidates(t *testing.T) {
	spec := NewImageSpec(2, 2, 1, pix.Float)
	b := NewBufferSpec(spec)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			b.SetPixel(x, y, 0, []float32{float32(x+2*y) / 3})
		}
	}
	cache := newFakeCache(pix.Float)
	b.cache = cache

	if err := b.Write("out.memo", "", pix.UInt8, nil); err != nil {
		t.Fatal(err)
	}
	if cache.invalids.Load() != 1 {
		t.Errorf("cache invalidated %d times, want 1", cache.invalids.Load())
	}
	out := takeLastOutput()
	if out == nil {
		t.Fatal("no output captured")
	}
	if out.spec.Format != pix.UInt8 {
		t.Fatalf("output format = %v, want %v", out.spec.Format, pix.UInt8)
	}
	want := []byte{0, 85, 170, 255}
	for i, w := range want {
		if out.data[i] != w {
			t.Errorf("output byte %d = %d, want %d", i, out.data[i], w)
		}
	}
}

func TestWriteFromCacheBackedBuffer(t *testing.T) {
	registerFakeFile("wcache.mem", NewImageSpec(2, 2, 1, pix.Float), []float32{1, 2, 3, 4})
	cache := newFakeCache(pix.Float)
	b := NewBufferFile("wcache.mem", 0, 0, cache)
	if err := b.Read(0, 0, false, pix.Unknown, nil); err != nil {
		t.Fatal(err)
	}
	if b.Storage() != StorageCache {
		t.Fatalf("precondition: Storage() = %v", b.Storage())
	}
	if err := b.Write("wout.memo", "", pix.Unknown, nil); err != nil {
		t.Fatal(err)
	}
	out := takeLastOutput()
	if out == nil {
		t.Fatal("no output captured")
	}
	want := []float32{1, 2, 3, 4}
	for i, w := range want {
		got := pix.GetFloat(pix.Float, out.data[i*4:])
		if got != w {
			t.Errorf("output pixel %d = %v, want %v", i, got, w)
		}
	}
	// Writing must not silently promote the buffer.
	if b.Storage() != StorageCache {
		t.Errorf("Storage() = %v after Write, want %v", b.Storage(), StorageCache)
	}
}

func TestReadErrorsOnUnboundBuffer(t *testing.T) {
	b := New()
	if err := b.Read(0, 0, false, pix.Unknown, nil); err == nil {
		t.Error("Read on unbound buffer did not fail")
	}
	if !b.HasError() {
		t.Error("error not recorded")
	}
	msg := b.GetError(true)
	if msg == "" {
		t.Error("GetError returned empty message")
	}
	if b.HasError() {
		t.Error("GetError(true) did not clear the error state")
	}
}

func TestMissingSubimageIsAnError(t *testing.T) {
	registerFakeFile("onesub.mem", NewImageSpec(2, 2, 1, pix.Float), []float32{0, 0, 0, 0})
	b := NewBufferFile("onesub.mem", 3, 0, nil)
	if b.Spec().Width != 0 {
		t.Error("missing subimage produced a non-zero spec")
	}
	if !b.HasError() {
		t.Error("missing subimage did not record an error")
	}
}

// Scenario: an all-float workflow where values survive set/get exactly.
func TestFloatRoundTripScenario(t *testing.T) {
	b := NewBufferSpec(NewImageSpec(2, 2, 1, pix.Float))
	want := [][]float32{{0.1}, {0.6}, {-2.5}, {1e7}}
	i := 0
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if !b.SetPixel(x, y, 0, want[i]) {
				t.Fatalf("SetPixel(%d,%d) failed", x, y)
			}
			i++
		}
	}
	i = 0
	got := make([]float32, 1)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			b.GetPixel(x, y, 0, got, WrapBlack)
			if got[0] != want[i][0] {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got[0], want[i][0])
			}
			i++
		}
	}
	// Bulk retrieval sees the same values in x-fastest order.
	raw := make([]byte, 2*2*4)
	if err := b.GetPixels(ROI{}, pix.Float, raw); err != nil {
		t.Fatal(err)
	}
	for i, w := range want {
		if got := pix.GetFloat(pix.Float, raw[i*4:]); got != w[0] {
			t.Errorf("bulk pixel %d = %v, want %v", i, got, w[0])
		}
	}
}

// Scenario: float pixels retrieved as uint8 quantize with 1.0 mapping to 255.
func TestFloatToUInt8QuantizationScenario(t *testing.T) {
	b := NewBufferSpec(NewImageSpec(3, 3, 1, pix.Float))
	vals := []float32{0, 0.125, 0.25, 0.375, 0.5, 0.625, 0.75, 0.875, 1}
	for i, v := range vals {
		b.SetPixel(i%3, i/3, 0, []float32{v})
	}
	raw := make([]byte, 9)
	if err := b.GetPixels(ROI{}, pix.UInt8, raw); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 32, 64, 96, 128, 159, 191, 223, 255}
	for i, w := range want {
		if raw[i] != w {
			t.Errorf("quantized pixel %d = %d, want %d", i, raw[i], w)
		}
	}
}
