// Command pmdump captures a sequence of PM telemetry table snapshots to a
// file, one raw table image per refresh interval. Requires root.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	ryzensmu "github.com/amkillam/ryzen-smu"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pmdump: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to a yaml config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	out := flag.String("o", "pmtable.bin", "Output file")
	count := flag.Int("count", 1, "Number of snapshots to capture")
	interval := flag.Duration("interval", time.Second, "Delay between snapshots")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Capture raw PM table snapshots for offline analysis.\n\n")
		fmt.Fprintf(os.Stderr, "The output file holds count back-to-back table images; the table\n")
		fmt.Fprintf(os.Stderr, "size and version are printed on start so the images can be decoded.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	if *count < 1 {
		return fmt.Errorf("count must be at least 1")
	}

	var cfg ryzensmu.Config
	if *configPath != "" {
		loaded, err := ryzensmu.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	engine, err := ryzensmu.NewLocal(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Initialize(); err != nil {
		return fmt.Errorf("initialize SMU: %w", err)
	}

	geo, err := engine.PMTableGeometry()
	if err != nil {
		return fmt.Errorf("discover PM table: %w", err)
	}
	fmt.Printf("%s: table size %#x version %#x, capturing %d snapshot(s) to %s\n",
		engine.Codename(), geo.Size, geo.Version, *count, *out)

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, geo.Size)
	pb := progressbar.Default(int64(*count))
	defer pb.Close()

	for i := 0; i < *count; i++ {
		if i > 0 {
			time.Sleep(*interval)
		}
		n, err := engine.ReadPMTable(buf)
		if err != nil {
			return fmt.Errorf("read PM table: %w", err)
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return fmt.Errorf("write snapshot %d: %w", i, err)
		}
		pb.Add(1)
	}

	return nil
}
