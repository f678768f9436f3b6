// Package imageio loads and saves the pipeline's input and output images.
// Decoding supports jpg, png and webp from local files or HTTP(S) URLs;
// failures surface as typed load errors so a batch driver can isolate them
// per pair.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// LoadError reports that an input could not be read or decoded as an image.
// It is fatal only for the pair it belongs to.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads and decodes an image from a file path.
func Load(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	// imaging.Open covers the registered decoders; retry explicitly so webp
	// content with a misleading extension still decodes.
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}

	img, err := decodeBytes(data)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	return img, nil
}

// LoadFromURL downloads and decodes an image from an HTTP(S) URL.
func LoadFromURL(imageURL string) (image.Image, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return nil, &LoadError{Source: imageURL, Err: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &LoadError{Source: imageURL, Err: fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)}
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(imageURL)
	if err != nil {
		return nil, &LoadError{Source: imageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{Source: imageURL, Err: fmt.Errorf("HTTP %d %s", resp.StatusCode, resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LoadError{Source: imageURL, Err: err}
	}

	img, err := decodeBytes(data)
	if err != nil {
		return nil, &LoadError{Source: imageURL, Err: err}
	}
	return img, nil
}

// LoadSmart loads an image from either a file path or a URL.
func LoadSmart(source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return LoadFromURL(source)
	}
	return Load(source)
}

// decodeBytes decodes an image from raw bytes with a webp fallback.
func decodeBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// Save writes an image to a file in the requested format. Quality applies to
// jpg and webp; lossless applies to webp only.
func Save(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
