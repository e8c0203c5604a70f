package extractor

import (
	"mime"
	"path/filepath"
	"strings"
)

// suffixResolver returns a resolved suffix or "" when it has no opinion.
type suffixResolver func(filename, contentType string) string

// Resolvers are tried in order; the first resolution wins.
var suffixResolvers = []suffixResolver{
	fromFilename,
	fromContentType,
}

// ResolveSuffix determines the file suffix used for extraction dispatch.
// The filename extension wins; when the filename has none, the declared
// content type is consulted. Returns "" when neither has an opinion.
func ResolveSuffix(filename, contentType string) string {
	for _, resolve := range suffixResolvers {
		if suffix := resolve(filename, contentType); suffix != "" {
			return suffix
		}
	}
	return ""
}

func fromFilename(filename, _ string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Preferred extensions for types where mime.ExtensionsByType is
// ambiguous or platform-dependent.
var contentTypeSuffixes = map[string]string{
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"text/markdown":   ".md",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/bmp":       ".bmp",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.oasis.opendocument.spreadsheet":                            ".ods",
}

func fromContentType(_, contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if suffix, ok := contentTypeSuffixes[mediaType]; ok {
		return suffix
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return strings.ToLower(exts[0])
}
