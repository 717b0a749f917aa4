package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
)

// MaxUploadBytes bounds uploaded images.
const MaxUploadBytes = 10 << 20

var (
	// ErrNotAnImage is returned when uploaded data is not a supported image type.
	ErrNotAnImage = errors.New("uploaded file is not a supported image")

	// ErrTooLarge is returned when an upload exceeds MaxUploadBytes.
	ErrTooLarge = errors.New("uploaded file is too large")
)

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// ReadUpload reads an uploaded image and returns it as a data URL with its sniffed
// content type.
func ReadUpload(r io.Reader) (string, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return "", "", ErrTooLarge
	}
	return DataURL(data)
}

// ReadFile reads an image file as a data URL.
func ReadFile(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	return ReadUpload(f)
}

// DataURL sniffs data and encodes it as a base64 data URL.
func DataURL(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", ErrNotAnImage
	}
	mt := http.DetectContentType(data)
	if !supportedImageTypes[mt] {
		return "", "", fmt.Errorf("%w: %s", ErrNotAnImage, mt)
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data), mt, nil
}

// FileDevice is a Device whose stream always shows the image stored in a file. It
// stands in for a camera on machines without one.
type FileDevice struct {
	Path string
}

// Open decodes the file.
func (d FileDevice) Open(ctx context.Context, _ Facing) (Stream, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Path, err)
	}
	return &stillStream{img: img}, nil
}

// ImageDevice is a Device that streams a fixed image.
type ImageDevice struct {
	Image image.Image
}

// Open returns a stream of the image.
func (d ImageDevice) Open(ctx context.Context, _ Facing) (Stream, error) {
	if d.Image == nil {
		return nil, errors.New("no image")
	}
	return &stillStream{img: d.Image}, nil
}

type stillStream struct {
	img    image.Image
	closed bool
}

func (s *stillStream) Frame(ctx context.Context) (image.Image, error) {
	if s.closed {
		return nil, errors.New("stream closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.img, nil
}

func (s *stillStream) Close() error {
	s.closed = true
	return nil
}
