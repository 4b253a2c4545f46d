package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8((x * 255) / width), uint8((y * 255) / height), 128, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestGetImageInfo(t *testing.T) {
	info := GetImageInfo(createTestImage(400, 300))
	if info.Width != 400 || info.Height != 300 {
		t.Errorf("expected 400x300, got %dx%d", info.Width, info.Height)
	}
	if want := 400.0 / 300.0; info.AspectRatio != want {
		t.Errorf("expected ratio %f, got %f", want, info.AspectRatio)
	}
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(encodePNG(t, createTestImage(20, 10)))
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}

	if _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestLoadImageFromURL(t *testing.T) {
	data := encodePNG(t, createTestImage(32, 16))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(data)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewProcessor()
	img, err := p.LoadImageSmart(context.Background(), srv.URL+"/ok.png")
	if err != nil {
		t.Fatalf("LoadImageSmart failed: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("expected width 32, got %d", img.Bounds().Dx())
	}

	if _, err := p.LoadImageFromURL(context.Background(), srv.URL+"/page"); err == nil {
		t.Error("expected content type error")
	}
	if _, err := p.LoadImageFromURL(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected status error")
	}
	if _, err := p.LoadImageFromURL(context.Background(), "ftp://example.com/a.png"); err == nil {
		t.Error("expected scheme error")
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	b64, err := p.PrepareImageForModel(createTestImage(400, 200), "png", 100, 85)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("expected 100x50, got %v", img.Bounds())
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(50, 40)

	for _, format := range []string{"png", "jpg", "webp"} {
		path := filepath.Join(dir, "out."+format)
		if err := p.SaveImage(img, path, format, 90, false); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", format, err)
		}
		loaded, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", format, err)
		}
		if loaded.Bounds().Dx() != 50 || loaded.Bounds().Dy() != 40 {
			t.Errorf("%s: unexpected bounds %v", format, loaded.Bounds())
		}
	}

	if err := Encode(&bytes.Buffer{}, img, "tiff", 90, false); err == nil {
		t.Error("expected unsupported format error")
	}
}
