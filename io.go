package imgbuf

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pspoerri/imgbuf/pix"
)

// ProgressCallback reports progress of a long-running pixel operation.
// Returning true cancels the operation; chunks already processed are kept.
type ProgressCallback func(done, total int64) bool

// ImageInput is the reading side of a format plugin. Implementations are
// registered with RegisterInput and resolved by file extension.
type ImageInput interface {
	// Spec returns the native descriptor of the currently selected
	// subimage/mip level. The returned spec is owned by the input.
	Spec() *ImageSpec

	// SeekSubimage selects a subimage and mip level, reporting whether the
	// combination exists.
	SeekSubimage(subimage, miplevel int) bool

	// ReadImage reads every pixel of the current subimage into dst,
	// converted to the given element type. dst must hold
	// Spec().ImageBytes() worth of pixels at that type.
	ReadImage(format pix.Type, dst []byte) error

	Close() error
}

// DeepInput is implemented by format plugins that can read deep
// (variable-samples-per-pixel) images.
type DeepInput interface {
	ReadNativeDeep() (*DeepData, error)
}

// ImageOutput is the writing side of a format plugin.
type ImageOutput interface {
	// Open prepares the named file for writing pixels described by spec.
	Open(name string, spec *ImageSpec) error

	// WriteImage writes every pixel from src (element type format, contiguous
	// layout). The progress callback may be nil; a true return cancels.
	WriteImage(format pix.Type, src []byte, progress ProgressCallback) error

	Close() error
}

// InputOpener opens a file for reading.
type InputOpener func(name string) (ImageInput, error)

// OutputCreator creates a fresh, unopened output.
type OutputCreator func() ImageOutput

type formatEntry struct {
	name   string
	open   InputOpener
	create OutputCreator
}

var (
	formatMu   sync.RWMutex
	formats    = map[string]*formatEntry{} // by format name
	extensions = map[string]*formatEntry{} // by ".ext"
)

func lookupEntry(format string) *formatEntry {
	e := formats[format]
	if e == nil {
		e = &formatEntry{name: format}
		formats[format] = e
	}
	return e
}

// RegisterInput registers a reader for a format name and its file extensions
// (without dots). Typically called from a codec package's init.
func RegisterInput(format string, exts []string, open InputOpener) {
	formatMu.Lock()
	defer formatMu.Unlock()
	e := lookupEntry(format)
	e.open = open
	for _, ext := range exts {
		extensions["."+strings.ToLower(ext)] = e
	}
}

// RegisterOutput registers a writer for a format name and its file extensions.
func RegisterOutput(format string, exts []string, create OutputCreator) {
	formatMu.Lock()
	defer formatMu.Unlock()
	e := lookupEntry(format)
	e.create = create
	for _, ext := range exts {
		extensions["."+strings.ToLower(ext)] = e
	}
}

// OpenInput opens an image file with the plugin registered for its extension.
func OpenInput(name string) (ImageInput, error) {
	formatMu.RLock()
	e := extensions[strings.ToLower(filepath.Ext(name))]
	formatMu.RUnlock()
	if e == nil || e.open == nil {
		return nil, fmt.Errorf("imgbuf: no input plugin for %q", name)
	}
	in, err := e.open(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	return in, nil
}

// InputFormatName returns the registered format name for a file, or "".
func InputFormatName(name string) string {
	formatMu.RLock()
	defer formatMu.RUnlock()
	if e := extensions[strings.ToLower(filepath.Ext(name))]; e != nil {
		return e.name
	}
	return ""
}

// CreateOutput creates an output plugin for the named file. If format is
// non-empty it selects the plugin directly; otherwise the file extension
// decides.
func CreateOutput(name, format string) (ImageOutput, error) {
	formatMu.RLock()
	var e *formatEntry
	if format != "" {
		e = formats[format]
	} else {
		e = extensions[strings.ToLower(filepath.Ext(name))]
	}
	formatMu.RUnlock()
	if e == nil || e.create == nil {
		return nil, fmt.Errorf("imgbuf: no output plugin for %q", name)
	}
	return e.create(), nil
}

// RegisteredFormats returns the sorted names of all registered formats.
func RegisteredFormats() []string {
	formatMu.RLock()
	defer formatMu.RUnlock()
	names := make([]string, 0, len(formats))
	for n := range formats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
