package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pspoerri/imgbuf"
	_ "github.com/pspoerri/imgbuf/codec"
	"github.com/pspoerri/imgbuf/imagecache"
	"github.com/pspoerri/imgbuf/pix"
)

func main() {
	configPath := flag.String("config", "", "YAML cache config file")
	outFormat := flag.String("format", "", "output format name (default: by extension)")
	outType := flag.String("type", "", "output pixel type (uint8, uint16, half, float, ...)")
	quality := flag.Int("quality", 0, "encoder quality for jpeg/webp")
	subimage := flag.Int("subimage", 0, "subimage to read")
	showProgress := flag.Bool("progress", false, "show a progress bar while writing")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: imgconvert [flags] <input> <output>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	input, output := flag.Arg(0), flag.Arg(1)

	cache := imgbuf.ImageCache(imagecache.Shared())
	if *configPath != "" {
		cfg, err := imagecache.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("imgconvert: %v", err)
		}
		cache = imagecache.NewCache(cfg)
	}

	dtype := pix.Unknown
	if *outType != "" {
		dtype = pix.FromString(*outType)
		if !dtype.IsValid() {
			log.Fatalf("imgconvert: unknown pixel type %q", *outType)
		}
	}

	buf := imgbuf.NewBufferFile(input, *subimage, 0, cache)
	if err := buf.Read(*subimage, 0, false, dtype, nil); err != nil {
		log.Fatalf("imgconvert: reading %s: %s", input, buf.GetError(true))
	}
	if *quality > 0 {
		// The write spec is copied from the buffer's; stash the quality
		// attribute where the encoder looks for it.
		buf.Spec().SetAttr("jpeg:quality", *quality)
		buf.Spec().SetAttr("webp:quality", *quality)
	}

	var progress imgbuf.ProgressCallback
	var bar *progressBar
	if *showProgress {
		bar = newProgressBar(output)
		progress = bar.update
	}
	if err := buf.Write(output, *outFormat, dtype, progress); err != nil {
		log.Fatalf("imgconvert: writing %s: %v", output, err)
	}
	if bar != nil {
		bar.finish()
	}
}
