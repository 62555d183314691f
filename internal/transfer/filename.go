package transfer

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

const maxFilenameLength = 200

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multiSpace  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename makes a name safe to place in the destination tree:
// path-unsafe characters are removed, whitespace runs collapse to a single
// space, and the result is truncated to a fixed length.
func SanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	if len(name) > maxFilenameLength {
		ext := path.Ext(name)
		if len(ext) < maxFilenameLength {
			name = name[:maxFilenameLength-len(ext)] + ext
		} else {
			name = name[:maxFilenameLength]
		}
	}
	return name
}

// FilenameFromURL derives a filename from the last segment of a URL's
// path. A trailing slash or an empty path yields no usable name, in which
// case a synthetic one is generated.
func FilenameFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		segment := u.Path
		if i := strings.LastIndexByte(segment, '/'); i >= 0 {
			segment = segment[i+1:]
		}
		if name := SanitizeFilename(segment); name != "" && name != "." {
			return name
		}
	}
	return syntheticFilename()
}

// syntheticFilename generates a unique fallback name for URLs without a
// usable path component.
func syntheticFilename() string {
	return fmt.Sprintf("download_%d.bin", time.Now().UnixMilli())
}
