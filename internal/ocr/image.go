package ocr

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// DecodeImage returns the raw bytes and MIME type of a base64 image given either as a
// data URL ("data:image/png;base64,...") or as bare base64. For bare input the MIME
// type is sniffed from the bytes.
func DecodeImage(base64Image string) ([]byte, string, error) {
	const op = "DecodeImage"

	s := strings.TrimSpace(base64Image)
	if s == "" {
		return nil, "", NewOCRError(op, ErrEmptyImage, "")
	}

	mimeType := ""
	if strings.HasPrefix(s, "data:") {
		header, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", NewOCRError(op, ErrInvalidImage, "data URL without base64 payload")
		}
		mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		s = payload
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some encoders drop padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, "", NewOCRError(op, ErrInvalidImage, err.Error())
		}
	}
	if len(data) == 0 {
		return nil, "", NewOCRError(op, ErrEmptyImage, "decoded payload is empty")
	}

	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// ToDataURL returns base64Image as a data URL, adding the prefix when the input is
// bare base64.
func ToDataURL(base64Image string) (string, error) {
	s := strings.TrimSpace(base64Image)
	if strings.HasPrefix(s, "data:") {
		if _, _, err := DecodeImage(s); err != nil {
			return "", err
		}
		return s, nil
	}
	data, mimeType, err := DecodeImage(s)
	if err != nil {
		return "", err
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
