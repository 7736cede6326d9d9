package naming

import (
	"path/filepath"
	"strings"
)

// TargetPath builds the audio output path for a source video.
//
//	outputDir == "":   <dir of source>/<clean stem>.<format>
//	preserve:          <outputDir>/<relative dirs, cleaned>/<clean stem>.<format>
//	flat:              <outputDir>/<clean stem>.<format>
//
// relPath is the source path relative to the scan root.
func TargetPath(srcPath, relPath, outputDir, format string, preserve bool) string {
	base := filepath.Base(srcPath)
	file := CleanName(strings.TrimSuffix(base, filepath.Ext(base))) + "." + format

	if outputDir == "" {
		return filepath.Join(filepath.Dir(srcPath), file)
	}
	if !preserve {
		return filepath.Join(outputDir, file)
	}

	parts := []string{outputDir}
	if relDir := filepath.Dir(relPath); relDir != "." && relDir != string(filepath.Separator) {
		for _, seg := range strings.Split(filepath.ToSlash(relDir), "/") {
			if seg == "" || seg == "." || seg == ".." {
				continue
			}
			parts = append(parts, CleanName(seg))
		}
	}
	parts = append(parts, file)
	return filepath.Join(parts...)
}
