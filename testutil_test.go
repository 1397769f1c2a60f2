package imgbuf

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pspoerri/imgbuf/pix"
)

// fakeFile is an in-memory image served by the "mem" test format. Pixel
// values are held as float32 regardless of the declared native type so tests
// can assert exact values through any conversion.
type fakeFile struct {
	spec   ImageSpec
	pixels []float32 // channel-interleaved, data-window order
	deep   *DeepData

	opens atomic.Int32
	reads atomic.Int32
}

var (
	fakeMu    sync.Mutex
	fakeFiles = map[string]*fakeFile{}
)

func registerFakeFile(name string, spec *ImageSpec, pixels []float32) *fakeFile {
	f := &fakeFile{spec: *spec.Copy(), pixels: pixels}
	fakeMu.Lock()
	fakeFiles[name] = f
	fakeMu.Unlock()
	return f
}

func removeFakeFile(name string) {
	fakeMu.Lock()
	delete(fakeFiles, name)
	fakeMu.Unlock()
}

func lookupFakeFile(name string) *fakeFile {
	fakeMu.Lock()
	defer fakeMu.Unlock()
	return fakeFiles[name]
}

func init() {
	RegisterInput("mem", []string{"mem"}, func(name string) (ImageInput, error) {
		f := lookupFakeFile(name)
		if f == nil {
			return nil, fmt.Errorf("no test image %q", name)
		}
		f.opens.Add(1)
		return &fakeInput{f: f}, nil
	})
	RegisterOutput("memo", []string{"memo"}, func() ImageOutput {
		return &fakeOutput{}
	})
}

type fakeInput struct {
	f *fakeFile
}

func (in *fakeInput) Spec() *ImageSpec { return &in.f.spec }

func (in *fakeInput) SeekSubimage(subimage, miplevel int) bool {
	return subimage == 0 && miplevel == 0
}

func (in *fakeInput) ReadImage(format pix.Type, dst []byte) error {
	in.f.reads.Add(1)
	esz := format.Size()
	for i, v := range in.f.pixels {
		pix.PutFloat(format, dst[i*esz:], v)
	}
	return nil
}

func (in *fakeInput) ReadNativeDeep() (*DeepData, error) {
	if in.f.deep == nil {
		return nil, fmt.Errorf("test image has no deep data")
	}
	return in.f.deep.Copy(), nil
}

func (in *fakeInput) Close() error { return nil }

// fakeOutput captures what a Write delivered so tests can inspect it.
type fakeOutput struct {
	spec   *ImageSpec
	format pix.Type
	data   []byte
}

var (
	lastOutputMu sync.Mutex
	lastOutput   *fakeOutput
)

func takeLastOutput() *fakeOutput {
	lastOutputMu.Lock()
	defer lastOutputMu.Unlock()
	o := lastOutput
	lastOutput = nil
	return o
}

func (o *fakeOutput) Open(name string, spec *ImageSpec) error {
	o.spec = spec.Copy()
	return nil
}

func (o *fakeOutput) WriteImage(format pix.Type, src []byte, progress ProgressCallback) error {
	o.format = format
	o.data = append([]byte(nil), src[:o.spec.ImageBytes()]...)
	if progress != nil {
		progress(int64(o.spec.Height), int64(o.spec.Height))
	}
	return nil
}

func (o *fakeOutput) Close() error {
	lastOutputMu.Lock()
	lastOutput = o
	lastOutputMu.Unlock()
	return nil
}

// fakeCache is a minimal ImageCache over fakeFiles: one tile per image,
// pixels converted on the fly, instrumented with call counters.
type fakeCache struct {
	storage pix.Type // element type the cache claims to store

	infoCalls  atomic.Int32
	pixelCalls atomic.Int32
	tileCalls  atomic.Int32
	invalids   atomic.Int32
}

func newFakeCache(storage pix.Type) *fakeCache {
	return &fakeCache{storage: storage}
}

func (c *fakeCache) ImageInfo(name string) (CacheImageInfo, error) {
	c.infoCalls.Add(1)
	if lookupFakeFile(name) == nil {
		return CacheImageInfo{}, fmt.Errorf("no test image %q", name)
	}
	return CacheImageInfo{
		Subimages:  1,
		MipLevels:  1,
		FileFormat: "mem",
		CachedType: c.storage,
	}, nil
}

func (c *fakeCache) Spec(name string, subimage, miplevel int) (*ImageSpec, error) {
	f := lookupFakeFile(name)
	if f == nil || subimage != 0 || miplevel != 0 {
		return nil, fmt.Errorf("no test image %q subimage %d", name, subimage)
	}
	s := f.spec.Copy()
	s.SetFormat(c.storage)
	return s, nil
}

func (c *fakeCache) NativeSpec(name string, subimage, miplevel int) (*ImageSpec, error) {
	f := lookupFakeFile(name)
	if f == nil {
		return nil, fmt.Errorf("no test image %q", name)
	}
	return f.spec.Copy(), nil
}

func (c *fakeCache) GetPixels(name string, subimage, miplevel int, roi ROI, format pix.Type, dst []byte) error {
	c.pixelCalls.Add(1)
	f := lookupFakeFile(name)
	if f == nil {
		return fmt.Errorf("no test image %q", name)
	}
	s := &f.spec
	esz := format.Size()
	i := 0
	for z := roi.ZBegin; z < roi.ZEnd; z++ {
		for y := roi.YBegin; y < roi.YEnd; y++ {
			for x := roi.XBegin; x < roi.XEnd; x++ {
				idx := s.PixelIndex(x, y, z)
				for ch := roi.ChBegin; ch < roi.ChEnd; ch++ {
					var v float32
					if idx >= 0 {
						v = f.pixels[idx*int64(s.NChannels)+int64(ch)]
					}
					pix.PutFloat(format, dst[i*esz:], v)
					i++
				}
			}
		}
	}
	return nil
}

func (c *fakeCache) Tile(name string, subimage, miplevel, x, y, z int) (CacheTile, error) {
	c.tileCalls.Add(1)
	f := lookupFakeFile(name)
	if f == nil {
		return nil, fmt.Errorf("no test image %q", name)
	}
	s := &f.spec
	esz := c.storage.Size()
	data := make([]byte, len(f.pixels)*esz)
	for i, v := range f.pixels {
		pix.PutFloat(c.storage, data[i*esz:], v)
	}
	return &fakeTile{roi: s.ROI(), format: c.storage, pixels: data}, nil
}

func (c *fakeCache) Invalidate(name string) { c.invalids.Add(1) }

func (c *fakeCache) AddFile(name string, config *ImageSpec) error { return nil }

type fakeTile struct {
	roi    ROI
	format pix.Type
	pixels []byte
}

func (t *fakeTile) ROI() ROI         { return t.roi }
func (t *fakeTile) Format() pix.Type { return t.format }
func (t *fakeTile) Pixels() []byte   { return t.pixels }
func (t *fakeTile) Release()         {}

// gradientPixels builds channel-interleaved float values where channel c of
// pixel (x,y) is base + x + width*y + 100*c, handy for exact assertions.
func gradientPixels(width, height, nchannels int, base float32) []float32 {
	vals := make([]float32, width*height*nchannels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < nchannels; c++ {
				vals[(y*width+x)*nchannels+c] = base + float32(x) + float32(width*y) + 100*float32(c)
			}
		}
	}
	return vals
}
