package source

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// sniffLen is the number of leading bytes http.DetectContentType considers.
const sniffLen = 512

var videoContentTypes = map[string]string{
	".3gp":  "video/3gpp",
	".avi":  "video/x-msvideo",
	".flv":  "video/x-flv",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".ogv":  "video/ogg",
	".webm": "video/webm",
	".wmv":  "video/x-ms-wmv",
}

// DetectContentType returns the content type of a video by its file extension,
// falling back to sniffing the leading bytes.
func DetectContentType(name string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if contentType, ok := videoContentTypes[ext]; ok {
		return contentType
	}
	if ext != "" {
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			return contentType
		}
	}
	return http.DetectContentType(head)
}
