//go:build darwin && arm64

package vm

// CacheLineSize is 128 bytes on Apple Silicon (M1/M2/M3), matching the
// documented L1/L2 coherency granule for those cores.
const CacheLineSize = 128
