package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// Mode selects how much of a file contributes to its fingerprint.
type Mode string

const (
	ModeSampled Mode = "sampled" // Size plus head and tail windows.
	ModeFull    Mode = "full"    // Entire content.
	ModeOff     Mode = "off"     // Every file is unique.
)

// DefaultWindow is the sampled-mode window size.
const DefaultWindow int64 = 64 * 1024

// Fingerprint identifies file content. Equal fingerprints mean duplicate
// files under the mode that produced them.
type Fingerprint string

const chunkSize = 256 * 1024

// compute hashes the current content of path according to mode.
func compute(ctx context.Context, path string, mode Mode, window int64) (Fingerprint, error) {
	if mode == ModeOff {
		return Fingerprint("path:" + path), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()

	h := sha256.New()
	var sz [8]byte
	binary.BigEndian.PutUint64(sz[:], uint64(size))
	h.Write(sz[:])

	if mode == ModeFull || size <= 2*window {
		if err := copyCtx(ctx, h, f, -1); err != nil {
			return "", err
		}
	} else {
		if err := copyCtx(ctx, h, f, window); err != nil {
			return "", err
		}
		if _, err := f.Seek(size-window, io.SeekStart); err != nil {
			return "", err
		}
		if err := copyCtx(ctx, h, f, window); err != nil {
			return "", err
		}
	}
	return Fingerprint(string(mode) + ":" + hex.EncodeToString(h.Sum(nil))), nil
}

// copyCtx copies n bytes (all when n < 0) from r into h, checking ctx
// between chunks.
func copyCtx(ctx context.Context, h hash.Hash, r io.Reader, n int64) error {
	if n >= 0 {
		r = io.LimitReader(r, n)
	}
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		k, err := r.Read(buf)
		h.Write(buf[:k])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
	}
}
