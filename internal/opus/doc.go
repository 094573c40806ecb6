// Package opus reads and writes raw Opus frame streams.
//
// Frame streams use a minimal binary format: concatenated length-prefixed
// frames ([uint16 LE length][opus bytes]). No headers, no metadata. The
// cmd/frames tool converts Ogg Opus files into this format so tests and
// bench feeds can replay real audio through the bridge.
package opus
