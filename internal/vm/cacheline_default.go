//go:build !(darwin && arm64)

package vm

// CacheLineSize is the cross-thread alignment used by push_aligner_cacheline.
// 64 bytes covers x86-64 and the common ARM64 implementations. Apple
// Silicon is the only platform with its own build-tagged override (see
// cacheline_apple_silicon.go); every other platform, including ones with a
// wider documented line size, uses this value.
const CacheLineSize = 64
