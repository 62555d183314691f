package youtube

import (
	"path/filepath"
	"strings"
)

// mediaExtensions are the container formats the downloader can produce
// for either profile. Used to recognize the final-artifact line.
var mediaExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".webm": true,
	".m4v":  true,
	".mp3":  true,
	".m4a":  true,
	".opus": true,
	".ogg":  true,
}

// outputScanner extracts the produced artifact path from the downloader's
// standard output. The tool is asked to print the final path after moving
// the file into place; everything else on stdout is progress noise. The
// heuristic is deliberately narrow: a trimmed line whose extension is a
// known media container. Kept separate from process spawning so it can be
// tested without a subprocess.
type outputScanner struct {
	artifactPath string
}

// Scan feeds one stdout line to the scanner.
func (o *outputScanner) Scan(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if mediaExtensions[strings.ToLower(filepath.Ext(line))] {
		o.artifactPath = line
	}
}

// ArtifactPath returns the last recognized artifact path, or "" when none
// was seen.
func (o *outputScanner) ArtifactPath() string {
	return o.artifactPath
}
