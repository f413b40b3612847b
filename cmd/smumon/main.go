// Command smumon prints the SMU's identification and firmware state and,
// with --watch, renders a live view of the PM telemetry table. Requires
// root for SMN and /dev/mem access.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	ryzensmu "github.com/amkillam/ryzen-smu"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "smumon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to a yaml config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	watch := flag.Bool("watch", false, "Continuously refresh the PM table view")
	interval := flag.Duration("interval", time.Second, "Refresh interval for --watch")
	entries := flag.Int("entries", 32, "Number of PM table words to display")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Inspect the SMU of the local AMD Zen processor.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
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

	if !*watch {
		return printStatus(os.Stdout, engine, *entries)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("--watch needs a terminal on stdout")
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		var b strings.Builder
		if err := printStatus(&b, engine, *entries); err != nil {
			return err
		}
		fmt.Print(ansi.EraseEntireScreen + ansi.CursorHomePosition + b.String())
		<-ticker.C
	}
}

func printStatus(w io.Writer, engine *ryzensmu.Engine, entries int) error {
	fmt.Fprintf(w, "Processor:  %s\n", engine.Codename())

	for _, mb := range []ryzensmu.Mailbox{ryzensmu.RSMU, ryzensmu.MP1, ryzensmu.HSMP} {
		version, err := engine.FirmwareVersion(mb)
		switch {
		case errors.Is(err, ryzensmu.ErrUnsupported):
			continue
		case err != nil:
			return fmt.Errorf("query %s firmware version: %w", mb, err)
		}
		fmt.Fprintf(w, "%-5s fw:   %s\n", mb, ryzensmu.FormatVersion(version))
	}

	ifVersion, err := engine.MP1InterfaceVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "MP1 iface:  %s\n", ifVersion)

	geo, err := engine.PMTableGeometry()
	if errors.Is(err, ryzensmu.ErrUnsupported) {
		fmt.Fprintf(w, "PM table:   unsupported\n")
		return nil
	}
	if err != nil {
		return fmt.Errorf("discover PM table: %w", err)
	}
	fmt.Fprintf(w, "PM table:   base %#x size %#x", geo.Base, geo.Size)
	if geo.Version != 0 {
		fmt.Fprintf(w, " version %#x", geo.Version)
	}
	fmt.Fprintln(w)

	buf := make([]byte, geo.Size)
	if _, err := engine.ReadPMTable(buf); err != nil {
		return fmt.Errorf("read PM table: %w", err)
	}
	printTable(w, buf, entries)
	return nil
}

// printTable renders the leading table words as both raw hex and float32,
// which is how the firmware encodes most telemetry values.
func printTable(w io.Writer, table []byte, entries int) {
	if entries*4 > len(table) {
		entries = len(table) / 4
	}
	for i := 0; i < entries; i += 4 {
		fmt.Fprintf(w, "%#06x:", i*4)
		for j := i; j < i+4 && j < entries; j++ {
			word := binary.LittleEndian.Uint32(table[j*4:])
			fmt.Fprintf(w, "  %08x %12.4f", word, math.Float32frombits(word))
		}
		fmt.Fprintln(w)
	}
}
