// Package storage keeps posting media (ballot scans and audio recordings) in
// an object store.
package storage

import (
	"context"
	"io"
	"mime"
	"strings"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

var ballotTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

var audioTypes = map[string]string{
	"audio/mpeg": ".mp3",
	"audio/wav":  ".wav",
	"audio/ogg":  ".ogg",
	"audio/webm": ".webm",
	"audio/mp4":  ".m4a",
}

// BallotExtension returns the file extension for an accepted ballot content
// type. ok is false for any other type.
func BallotExtension(contentType string) (ext string, ok bool) {
	ext, ok = ballotTypes[baseType(contentType)]
	return ext, ok
}

// AudioExtension is BallotExtension for audio recordings.
func AudioExtension(contentType string) (ext string, ok bool) {
	ext, ok = audioTypes[baseType(contentType)]
	return ext, ok
}

func baseType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// PostingMediaKey builds the object key of a posting's media file.
func PostingMediaKey(postingID, kind, name, ext string) string {
	return "postings/" + postingID + "/" + kind + "-" + name + ext
}
