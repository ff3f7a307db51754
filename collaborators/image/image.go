// Package image defines the narrow contract the engine consumes for OS
// image content, per spec §1 ("hashing/decompression of image streams
// treated as a stream-consuming reader that yields a digest") — the codec
// itself is out of scope.
package image

import "io"

// Handle is an open OS image source. Reader returns a stream that, once
// fully consumed, makes Digest available; callers must drain Reader before
// calling Digest.
type Handle interface {
	Reader() (io.ReadCloser, error)
	Digest() (string, error)
	// Identity is a stable string identifying the image content (e.g. a
	// build id or content hash baked into the image manifest), used by the
	// storage subsystem to decide whether an update requires AbUpdate.
	Identity() string
}
