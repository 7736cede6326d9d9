package pipeline

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/backmassage/vid2audio/internal/fingerprint"
	"github.com/backmassage/vid2audio/internal/naming"
	"github.com/backmassage/vid2audio/internal/scan"
	"github.com/backmassage/vid2audio/internal/transcode"
)

// Plan is the work derived from one input before anything is converted.
type Plan struct {
	Input      string
	Scanned    int
	Tasks      []transcode.Task    // Accepted sources, in scan order.
	Duplicates []transcode.Outcome // Sources skipped in favor of a representative.
	Groups     []fingerprint.Group
}

// Plan scans input, registers every file with the fingerprint index and
// derives a unique target for each accepted source. Files whose fingerprint
// cannot be computed are warned about and scheduled anyway.
func (c *Converter) Plan(ctx context.Context, input string) (*Plan, error) {
	scanner := scan.New(scan.Options{
		Recursive:  c.cfg.Recursive,
		Extensions: c.cfg.Extensions,
		Logger:     c.log,
	})
	files, err := scanner.Scan(input)
	if err != nil {
		return nil, err
	}

	p := &Plan{Input: input}
	resolver := naming.NewCollisionResolver()
	for f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.Scanned++

		m, err := c.index.Register(ctx, f)
		switch {
		case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			return nil, err
		case err != nil:
			c.log.Warn("Cannot fingerprint %s, converting without duplicate check: %v", f.RelPath, err)
		case m.Duplicate:
			p.Duplicates = append(p.Duplicates, transcode.Duplicate(f, m.Representative))
			continue
		}

		target := naming.TargetPath(f.Path, f.RelPath, c.cfg.OutputDir, string(c.cfg.Format), c.cfg.PreserveStructure)
		resolved := resolver.Resolve(f.Path, target)
		if resolved != target {
			if owner, ok := resolver.Owner(target); ok {
				c.log.Debug(c.cfg.Verbose, "%s: %s is taken by %s, writing %s",
					f.RelPath, filepath.Base(target), owner, filepath.Base(resolved))
			}
		}
		p.Tasks = append(p.Tasks, transcode.TaskFromConfig(c.cfg, f, resolved))
	}
	p.Groups = c.index.Groups()
	return p, nil
}
