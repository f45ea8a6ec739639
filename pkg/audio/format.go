package audio

import (
	"path/filepath"
	"strings"
)

// DetectAudioFormat determines file extension based on Content-Type and filename
func DetectAudioFormat(contentType, filename string) string {
	// Priority 1: Trust filename extension
	if filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		switch ext {
		case ".wav":
			return "wav"
		case ".webm":
			return "webm"
		case ".m4a", ".mp4":
			return "m4a"
		case ".mp3":
			return "mp3"
		case ".ogg", ".opus":
			return "ogg"
		}
	}

	// Priority 2: Trust Content-Type
	switch {
	case strings.Contains(contentType, "wav"):
		return "wav"
	case strings.Contains(contentType, "webm"):
		return "webm"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "aac"):
		return "m4a"
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return "mp3"
	case strings.Contains(contentType, "ogg"):
		return "ogg"
	default:
		return "wav"
	}
}

// ContentType maps audio format to MIME type
func ContentType(audioFormat string) string {
	switch audioFormat {
	case "wav":
		return "audio/wav"
	case "webm":
		return "audio/webm"
	case "m4a", "mp4":
		return "audio/mp4"
	case "mp3":
		return "audio/mpeg"
	case "ogg", "opus":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// FormatFromMIME is the inverse of ContentType, parameters are ignored
func FormatFromMIME(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return DetectAudioFormat(strings.TrimSpace(base), "")
}
