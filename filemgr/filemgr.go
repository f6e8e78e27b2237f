package filemgr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const (
	maxImageSize  = 10 << 20
	thumbMaxEdge  = 320
	uploadTimeout = 30 * time.Second
)

var (
	ErrNotConfigured    = errors.New("image host is not configured")
	ErrInvalidExtension = errors.New("invalid file extension")
	ErrInvalidMIME      = errors.New("invalid MIME type")
	ErrFileTooLarge     = errors.New("file size exceeds limit")

	allowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	allowedMIMEs      = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
)

// Uploader pushes crop images to Cloudinary through its unsigned upload API.
// A preset on the Cloudinary side decides folder and transformation rules, so
// the only credentials needed here are the cloud name and the preset name.
type Uploader struct {
	cloudName string
	preset    string
	baseURL   string
	client    *http.Client
}

func NewUploader(cloudName, preset string) *Uploader {
	return &Uploader{
		cloudName: cloudName,
		preset:    preset,
		baseURL:   "https://api.cloudinary.com/v1_1",
		client:    &http.Client{Timeout: uploadTimeout},
	}
}

// WithBaseURL points the uploader at a different endpoint. Tests use it to
// swap in a local server.
func (u *Uploader) WithBaseURL(baseURL string) *Uploader {
	u.baseURL = strings.TrimRight(baseURL, "/")
	return u
}

func (u *Uploader) Configured() bool {
	return u.cloudName != "" && u.preset != ""
}

// UploadImage validates the uploaded file, sends it to the image host and
// sends a downscaled thumbnail alongside. It returns the hosted URLs for
// both. Listings embed the thumbnail and open the full image on demand.
func (u *Uploader) UploadImage(ctx context.Context, file multipart.File, header *multipart.FileHeader) (imageURL, thumbURL string, err error) {
	if !u.Configured() {
		return "", "", ErrNotConfigured
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !contains(allowedExtensions, ext) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidExtension, ext)
	}
	if header.Size > maxImageSize {
		return "", "", ErrFileTooLarge
	}

	raw, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
	if err != nil {
		return "", "", fmt.Errorf("read upload: %w", err)
	}
	if len(raw) > maxImageSize {
		return "", "", ErrFileTooLarge
	}

	mimeType := http.DetectContentType(raw)
	if !contains(allowedMIMEs, mimeType) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidMIME, mimeType)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("decode image: %w", err)
	}

	imageURL, err = u.send(ctx, header.Filename, raw)
	if err != nil {
		return "", "", err
	}

	thumb := imaging.Fit(img, thumbMaxEdge, thumbMaxEdge, imaging.Lanczos)
	var thumbBuf bytes.Buffer
	if err := jpeg.Encode(&thumbBuf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return "", "", fmt.Errorf("encode thumbnail: %w", err)
	}

	thumbName := strings.TrimSuffix(header.Filename, ext) + "_thumb.jpg"
	thumbURL, err = u.send(ctx, thumbName, thumbBuf.Bytes())
	if err != nil {
		return "", "", err
	}
	return imageURL, thumbURL, nil
}

func (u *Uploader) send(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.WriteField("upload_preset", u.preset); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/image/upload", u.baseURL, u.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image host: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("image host returned %d: %s", resp.StatusCode, snippet)
	}

	var out struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("image host response: %w", err)
	}
	if out.SecureURL == "" {
		return "", errors.New("image host response missing secure_url")
	}
	return out.SecureURL, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
