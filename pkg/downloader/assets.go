package downloader

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// allowedTypes maps accepted media types to the extension they are saved with
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// AssetIdentifier derives the extension-free dedup key for a title
func AssetIdentifier(title string) string {
	return strings.TrimLeft(strings.ReplaceAll(title, "/", "-"), ".")
}

// DetectType works out the media type of a fetched asset. A declared
// Content-Type wins over the URL suffix. ok is false when the type is not
// one of the accepted image formats.
func DetectType(contentType, assetURL string) (mediaType, ext string, ok bool) {
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return contentType, "", false
		}
		ext, ok = allowedTypes[mt]
		return mt, ext, ok
	}

	mediaType = extensionTypes[urlExtension(assetURL)]
	if mediaType == "" {
		return "unknown", "", false
	}
	return mediaType, allowedTypes[mediaType], true
}

// urlExtension returns the lowercased path suffix with query and fragment stripped
func urlExtension(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(raw, "?#"); i >= 0 {
		p = raw[:i]
	}
	return strings.ToLower(path.Ext(p))
}
