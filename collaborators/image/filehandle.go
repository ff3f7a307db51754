package image

import (
	"crypto/sha512"
	"encoding/hex"
	"io"
	"os"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

// FileHandle is the default Handle, backed by an OS image file already
// present on local disk (e.g. staged there by whatever fetches it from a
// registry or object store — out of this engine's scope per spec §1).
// Grounded on engine/esp.DecompressAndVerify's streaming-hash approach:
// the digest is computed once up front here rather than mid-stream, since
// a CLI invocation has the whole file available before Stage ever calls
// Reader.
type FileHandle struct {
	path   string
	digest string
}

// NewFileHandle opens path, hashes its full content (SHA-384, matching
// the algorithm engine/esp already verifies ESP payloads with), and
// returns a Handle ready for Reader/Digest/Identity.
func NewFileHandle(path string) (*FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.InvalidInput, "image.NewFileHandle", "failed to open image file", err)
	}
	defer f.Close()

	hasher := sha512.New384()
	if _, err := io.Copy(hasher, f); err != nil {
		return nil, enginerr.Wrap(enginerr.InvalidInput, "image.NewFileHandle", "failed to read image file", err)
	}

	return &FileHandle{
		path:   path,
		digest: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Reader reopens the backing file as a fresh stream.
func (h *FileHandle) Reader() (io.ReadCloser, error) {
	f, err := os.Open(h.path)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.InvalidInput, "image.FileHandle.Reader", "failed to open image file", err)
	}
	return f, nil
}

// Digest returns the SHA-384 digest computed at construction time.
func (h *FileHandle) Digest() (string, error) {
	return h.digest, nil
}

// Identity returns the same content digest: for a local file, content
// hash is the only stable identity this engine can derive without an
// external image registry to consult.
func (h *FileHandle) Identity() string {
	return h.digest
}
