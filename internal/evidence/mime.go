package evidence

import (
	"log"
	"mime"
	"strings"
)

// acceptedTypes maps accepted photo media types to the object extension.
var acceptedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/heic": ".heic",
	"image/webp": ".webp",
}

func init() {
	ensureMimeType(".heic", "image/heic")
	ensureMimeType(".webp", "image/webp")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("evidence: failed to register MIME type for %s: %v", ext, err)
	}
}

// extensionFor normalises a declared content type and returns its extension.
func extensionFor(contentType string) (string, string, bool) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		return "", "", false
	}
	ext, ok := acceptedTypes[mediaType]
	return mediaType, ext, ok
}

// ContentTypeFromName guesses a media type from a file name.
func ContentTypeFromName(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return mime.TypeByExtension(strings.ToLower(name[idx:]))
}
