package objectstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

// maxDimension bounds the downscaled image's longer edge in pixels.
const maxDimension = 1024

// jpegQuality is the re-encode quality target for uploaded derivative
// images.
const jpegQuality = 80

// BlobAdapter is the Blob Store Adapter (C3): it downscales derived images,
// re-encodes them as JPEG, and uploads them under a random opaque key.
// Upload failures are non-fatal — callers treat a returned error as "no URL,
// proceed without this image reference".
type BlobAdapter struct {
	store     ObjectStore
	publicURL func(key string) string
}

// NewBlobAdapter wraps store with the image-specific upload contract.
// publicURL maps an object key to the stable HTTPS URL the bucket serves it
// under (the bucket's public-read policy is established once at startup,
// outside this adapter's scope).
func NewBlobAdapter(store ObjectStore, publicURL func(key string) string) *BlobAdapter {
	return &BlobAdapter{store: store, publicURL: publicURL}
}

// UploadImage downscales raw to fit within 1024x1024 preserving aspect
// ratio, re-encodes it as JPEG quality ~80, and uploads it under a random
// key. It returns the stable public URL.
func (b *BlobAdapter) UploadImage(ctx context.Context, raw []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("blobadapter: decode image: %w", err)
	}
	resized := downscale(img, maxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("blobadapter: encode jpeg: %w", err)
	}

	key, err := randomKey()
	if err != nil {
		return "", fmt.Errorf("blobadapter: generate key: %w", err)
	}
	if _, err := b.store.Put(ctx, key, &buf, PutOptions{ContentType: "image/jpeg"}); err != nil {
		return "", fmt.Errorf("blobadapter: upload: %w", err)
	}
	return b.publicURL(key), nil
}

// downscale shrinks img so its longer edge is at most max pixels,
// preserving aspect ratio. Images already within bounds are returned
// unchanged.
func downscale(img image.Image, max int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= max && h <= max {
		return img
	}
	scale := float64(max) / float64(w)
	if h > w {
		scale = float64(max) / float64(h)
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func randomKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "img/" + hex.EncodeToString(buf) + ".jpg", nil
}
