package filemgr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testImageFile(t *testing.T, name string) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for x := 0; x < 640; x++ {
		for y := 0; y < 480; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatal(err)
	}
	file, header, err := req.FormFile("image")
	if err != nil {
		t.Fatal(err)
	}
	return file, header
}

func TestUploadImageSendsFileAndThumbnail(t *testing.T) {
	uploads := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("upload_preset"); got != "agrilink_unsigned" {
			t.Errorf("upload_preset: got %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file part missing: %v", err)
		}
		uploads++
		fmt.Fprintf(w, `{"secure_url":"https://res.example/upload/%d.jpg"}`, uploads)
	}))
	defer srv.Close()

	file, header := testImageFile(t, "tomatoes.png")
	defer file.Close()

	up := NewUploader("demo", "agrilink_unsigned").WithBaseURL(srv.URL)
	imageURL, thumbURL, err := up.UploadImage(context.Background(), file, header)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if uploads != 2 {
		t.Errorf("uploads: got %d, want 2 (image and thumbnail)", uploads)
	}
	if imageURL == "" || thumbURL == "" || imageURL == thumbURL {
		t.Errorf("urls: image=%q thumb=%q", imageURL, thumbURL)
	}
}

func TestUploadImageRejectsBadExtension(t *testing.T) {
	file, header := testImageFile(t, "notes.txt")
	defer file.Close()

	up := NewUploader("demo", "preset")
	_, _, err := up.UploadImage(context.Background(), file, header)
	if err == nil || !strings.Contains(err.Error(), "invalid file extension") {
		t.Fatalf("got %v, want invalid extension error", err)
	}
}

func TestUploadImageUnconfigured(t *testing.T) {
	file, header := testImageFile(t, "ok.png")
	defer file.Close()

	up := NewUploader("", "")
	if _, _, err := up.UploadImage(context.Background(), file, header); err != ErrNotConfigured {
		t.Fatalf("got %v, want ErrNotConfigured", err)
	}
}

func TestUploadImagePropagatesHostFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "preset not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	file, header := testImageFile(t, "ok.png")
	defer file.Close()

	up := NewUploader("demo", "missing").WithBaseURL(srv.URL)
	if _, _, err := up.UploadImage(context.Background(), file, header); err == nil {
		t.Fatal("want error when the host rejects the upload")
	}
}
