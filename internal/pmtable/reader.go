package pmtable

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amkillam/ryzen-smu/internal/cpuid"
	"github.com/amkillam/ryzen-smu/internal/mailbox"
)

// Clamp bounds for the refresh throttle.
const (
	MinRefreshInterval     = 1 * time.Millisecond
	MaxRefreshInterval     = 60 * time.Second
	DefaultRefreshInterval = 1 * time.Second
)

// Mapper opens read windows onto physical memory. Map is called at most
// once per region for the lifetime of a Reader; Unmap releases a window
// returned by Map.
type Mapper interface {
	Map(base uint64, size uint32) ([]byte, error)
	Unmap(window []byte) error
}

// SizeError reports a destination buffer smaller than the table. The caller
// is expected to retry with a buffer of at least Required bytes; this is a
// negotiation, not a hard failure.
type SizeError struct {
	Required int
}

func (e SizeError) Error() string {
	return fmt.Sprintf("smu: buffer too small for PM table, need %d bytes", e.Required)
}

// Is matches the insufficient-size sentinel.
func (e SizeError) Is(target error) bool {
	return target == mailbox.ErrInsufficientSize
}

// ClampRefreshInterval forces a throttle interval into the supported range.
func ClampRefreshInterval(d time.Duration) time.Duration {
	if d < MinRefreshInterval {
		return MinRefreshInterval
	}
	if d > MaxRefreshInterval {
		return MaxRefreshInterval
	}
	return d
}

// Reader retrieves the PM table: lazy one-time geometry discovery, a
// throttled transfer-to-DRAM trigger, and a bulk copy out of mapped
// physical memory. Windows are mapped once per geometry and held until
// Close.
type Reader struct {
	cmd      Commander
	codename cpuid.Codename
	mapper   Mapper
	interval time.Duration
	now      func() time.Time // test hook

	mu          sync.Mutex
	geo         *Geometry
	lastRefresh time.Time
	primary     []byte
	secondary   []byte
}

// NewReader returns a Reader for the codename's table. interval throttles
// refresh triggers and is clamped into the supported range.
func NewReader(cmd Commander, codename cpuid.Codename, mapper Mapper, interval time.Duration) *Reader {
	return &Reader{
		cmd:      cmd,
		codename: codename,
		mapper:   mapper,
		interval: ClampRefreshInterval(interval),
		now:      time.Now,
	}
}

// Read refreshes the table if due and copies it into buf, returning the
// number of bytes written. A too-small buf yields a SizeError carrying the
// required size. On split-table models the secondary region follows the
// primary in buf.
func (r *Reader) Read(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	geo, err := r.geometry()
	if err != nil {
		return 0, err
	}

	if len(buf) < int(geo.Size) {
		return 0, SizeError{Required: int(geo.Size)}
	}

	if err := r.refresh(geo); err != nil {
		return 0, err
	}
	if err := r.mapRegions(geo); err != nil {
		return 0, err
	}

	n := copy(buf, r.primary)
	if geo.AltSize > 0 {
		n += copy(buf[len(r.primary):], r.secondary)
	}
	return n, nil
}

// Size returns the table's total byte size, discovering geometry if needed.
func (r *Reader) Size() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	geo, err := r.geometry()
	if err != nil {
		return 0, err
	}
	return int(geo.Size), nil
}

// Geometry returns a copy of the cached geometry, discovering it if needed.
func (r *Reader) Geometry() (Geometry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	geo, err := r.geometry()
	if err != nil {
		return Geometry{}, err
	}
	return *geo, nil
}

// Version queries the table's format tag. Unsupported on codenames without
// a version command.
func (r *Reader) Version() (uint32, error) {
	p, ok := lookupPlan(r.codename)
	if !ok || p.versionOp == 0 {
		return 0, mailbox.ErrUnsupported
	}
	args := mailbox.Args{}
	if err := r.cmd.Exec(p.versionOp, &args, mailbox.RSMU); err != nil {
		return 0, err
	}
	return args[0], nil
}

// Close releases any mapped windows. Geometry stays cached; the next Read
// re-maps.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if r.primary != nil {
		if err := r.mapper.Unmap(r.primary); err != nil {
			firstErr = err
		}
		r.primary = nil
	}
	if r.secondary != nil {
		if err := r.mapper.Unmap(r.secondary); err != nil && firstErr == nil {
			firstErr = err
		}
		r.secondary = nil
	}
	return firstErr
}

// geometry discovers and caches the table location, size and version.
// Called with r.mu held.
func (r *Reader) geometry() (*Geometry, error) {
	if r.geo != nil {
		return r.geo, nil
	}

	p, ok := lookupPlan(r.codename)
	if !ok {
		return nil, mailbox.ErrUnsupported
	}

	base, err := p.base.queryBase(r.cmd)
	if err != nil {
		return nil, fmt.Errorf("query PM table base: %w", err)
	}
	if base == 0 {
		return nil, fmt.Errorf("SMU reported a zero PM table base")
	}

	var version uint32
	if p.queryVersion {
		args := mailbox.Args{}
		if err := r.cmd.Exec(p.versionOp, &args, mailbox.RSMU); err != nil {
			return nil, fmt.Errorf("query PM table version: %w", err)
		}
		version = args[0]
	}

	size, err := p.sizes.resolve(version)
	if err != nil {
		return nil, err
	}

	geo := &Geometry{
		Base:    base,
		Size:    size,
		AltSize: p.sizes.altSize,
		Version: version,
	}
	if geo.AltSize > 0 {
		// Split models report both bases packed into one 64-bit value.
		geo.AltBase = base >> 32
		geo.Base = base & 0xFFFFFFFF
	}

	slog.Debug("pmtable: discovered geometry",
		"codename", r.codename,
		"base", fmt.Sprintf("%#x", geo.Base),
		"altBase", fmt.Sprintf("%#x", geo.AltBase),
		"size", fmt.Sprintf("%#x", geo.Size),
		"altSize", fmt.Sprintf("%#x", geo.AltSize),
		"version", fmt.Sprintf("%#x", geo.Version))

	r.geo = geo
	return geo, nil
}

// refresh triggers a transfer to DRAM when the throttle interval has
// elapsed. Called with r.mu held.
func (r *Reader) refresh(geo *Geometry) error {
	now := r.now()
	if !r.lastRefresh.IsZero() && now.Sub(r.lastRefresh) < r.interval {
		return nil
	}

	p, _ := lookupPlan(r.codename)
	args := mailbox.NewArgs(p.transferArg)
	if err := r.cmd.Exec(p.transferOp, &args, mailbox.RSMU); err != nil {
		return fmt.Errorf("transfer PM table to DRAM: %w", err)
	}
	if geo.AltSize > 0 {
		args = mailbox.NewArgs(p.altTransferArg)
		if err := r.cmd.Exec(p.transferOp, &args, mailbox.RSMU); err != nil {
			return fmt.Errorf("transfer secondary PM table to DRAM: %w", err)
		}
	}

	r.lastRefresh = now
	return nil
}

// mapRegions lazily opens the read windows. A failed attempt is not cached;
// the next Read retries with the same geometry. Called with r.mu held.
func (r *Reader) mapRegions(geo *Geometry) error {
	if r.primary == nil {
		window, err := r.mapper.Map(geo.Base, geo.Size-geo.AltSize)
		if err != nil {
			return fmt.Errorf("%w: primary region at %#x: %w", mailbox.ErrMapFailed, geo.Base, err)
		}
		r.primary = window
	}
	if geo.AltSize > 0 && r.secondary == nil {
		window, err := r.mapper.Map(geo.AltBase, geo.AltSize)
		if err != nil {
			return fmt.Errorf("%w: secondary region at %#x: %w", mailbox.ErrMapFailed, geo.AltBase, err)
		}
		r.secondary = window
	}
	return nil
}
