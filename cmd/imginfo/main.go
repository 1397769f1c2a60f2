package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pspoerri/imgbuf"
	_ "github.com/pspoerri/imgbuf/codec"
	"github.com/pspoerri/imgbuf/imagecache"
)

func main() {
	configPath := flag.String("config", "", "YAML cache config file")
	stats := flag.Bool("stats", false, "compute per-channel pixel statistics")
	native := flag.Bool("native", false, "show the file's native spec instead of the cached one")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: imginfo [flags] <image> [image...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cache := openCache(*configPath)
	exit := 0
	for _, name := range flag.Args() {
		if err := printInfo(name, cache, *stats, *native); err != nil {
			fmt.Fprintf(os.Stderr, "imginfo: %v\n", err)
			exit = 1
		}
	}
	os.Exit(exit)
}

func openCache(configPath string) imgbuf.ImageCache {
	if configPath == "" {
		return imagecache.Shared()
	}
	cfg, err := imagecache.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "imginfo: %v\n", err)
		os.Exit(1)
	}
	return imagecache.NewCache(cfg)
}

func printInfo(name string, cache imgbuf.ImageCache, stats, native bool) error {
	buf := imgbuf.NewBufferFile(name, 0, 0, cache)
	spec := buf.Spec()
	if buf.HasError() {
		return fmt.Errorf("%s: %s", name, buf.GetError(true))
	}
	if native {
		spec = buf.NativeSpec()
	}

	fmt.Printf("File: %s\n", name)
	fmt.Printf("Format: %s\n", buf.FileFormatName())
	fmt.Printf("Subimages: %d (mip levels: %d)\n", buf.NSubimages(), buf.NMipLevels())
	fmt.Printf("Size: %d x %d x %d, %d channels, %s\n",
		spec.Width, spec.Height, spec.Depth, spec.NChannels, spec.Format)
	fmt.Printf("Data window: %s\n", spec.ROI())
	fmt.Printf("Display window: %s\n", spec.ROIFull())
	if spec.TileWidth > 0 {
		fmt.Printf("Tiles: %d x %d\n", spec.TileWidth, spec.TileHeight)
	} else {
		fmt.Printf("Tiles: scanline-oriented\n")
	}
	if spec.Deep {
		fmt.Printf("Deep: yes\n")
	}
	for i, ch := range spec.ChannelNames {
		fmt.Printf("  channel %d: %s (%s)\n", i, ch, spec.ChannelFormat(i))
	}
	for _, a := range spec.Attrs() {
		fmt.Printf("  attr %q: %v\n", a.Name, a.Value)
	}

	if stats {
		cs, ok := imgbuf.ComputeStats(buf, imgbuf.ROI{})
		if !ok {
			return fmt.Errorf("%s: cannot compute stats: %s", name, buf.GetError(true))
		}
		for c, st := range cs {
			fmt.Printf("  stats %s: min=%.5g max=%.5g mean=%.5g stddev=%.5g\n",
				spec.ChannelNames[c], st.Min, st.Max, st.Mean, st.StdDev)
		}
	}
	fmt.Println()
	return nil
}
