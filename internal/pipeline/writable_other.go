//go:build !unix

package pipeline

import "os"

// writable probes dir by creating and removing a temporary file.
func writable(dir string) error {
	f, err := os.CreateTemp(dir, ".vid2audio-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
