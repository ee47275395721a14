package arena

// Size presets. Callers are free to pass any size to the New* constructors;
// these exist so call sites read as intent ("give me a medium scratch pad")
// rather than a bare byte count, mirroring the size-class constants the
// teacher allocator package exposes for its own pools.
const (
	ScratchSizeSmall  uintptr = 512 * 1024
	ScratchSizeMedium uintptr = 1 * 1024 * 1024
	ScratchSizeLarge  uintptr = 4 * 1024 * 1024

	ArenaSizeSmall  uintptr = 64 * 1024 * 1024
	ArenaSizeMedium uintptr = 256 * 1024 * 1024
	ArenaSizeLarge  uintptr = 1024 * 1024 * 1024

	// defaultAlignment is used when a caller does not request auto-align
	// (WithAutoAlign(0) is rejected like any other invalid alignment); it
	// matches WordSize so pointer-sized payloads never straddle misaligned
	// addresses.
	defaultAlignment uintptr = WordSize
)

// Config holds the tunables shared by Static, Virtual and Chain arenas.
// It is assembled from functional Options, the pattern the teacher's
// allocator package uses for its own Config/Option pair.
type Config struct {
	size         uintptr
	autoAlign    uintptr
	pageAlignNew bool
	allowRemap   bool
	err          error
}

// Option mutates a Config during construction.
type Option func(*Config)

func defaultConfig(size uintptr) Config {
	return Config{
		size:         size,
		autoAlign:    defaultAlignment,
		pageAlignNew: false,
		allowRemap:   true,
	}
}

// WithAutoAlign sets the alignment every push rounds its offset up to
// before carving payload. a must be a power of two no smaller than a
// machine word; an invalid value fails the construction with
// invalid-params, the same contract set_auto_align enforces at runtime.
func WithAutoAlign(a uintptr) Option {
	return func(c *Config) {
		if !validAlignment(a) {
			if c.err == nil {
				c.err = invalidParams("arena.WithAutoAlign")
			}

			return
		}

		c.autoAlign = a
	}
}

// WithPageAlignedBlocks reserves an extra guard page ahead of every new
// block's usable region instead of starting payload at the block's base,
// trading one wasted page per block for a usable region that never shares
// its leading page with anything the allocator mapped before it.
func WithPageAlignedBlocks(on bool) Option {
	return func(c *Config) { c.pageAlignNew = on }
}

// WithRemapOnOverflow controls whether a Virtual arena may satisfy a push
// past its initial reservation by reserving a larger region and copying
// (true, default) or must instead route the overflow to the oversize
// side-chain (false).
func WithRemapOnOverflow(on bool) Option {
	return func(c *Config) { c.allowRemap = on }
}

func applyOptions(size uintptr, opts []Option) Config {
	cfg := defaultConfig(size)
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}
