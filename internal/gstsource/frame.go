package gstsource

import (
	"fmt"
	"image"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ToURI turns a plain path into an absolute file:// URI. Anything that
// already carries a scheme is returned unchanged.
func ToURI(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("gstsource: empty location")
	}
	if strings.Contains(location, "://") {
		return location, nil
	}

	abs, err := filepath.Abs(location)
	if err != nil {
		return "", fmt.Errorf("gstsource: resolve %q: %w", location, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// toRGBA copies a tightly packed RGBA buffer into a new image.
func toRGBA(data []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("gstsource: invalid frame size %dx%d", width, height)
	}
	want := width * height * 4
	if len(data) < want {
		return nil, fmt.Errorf("gstsource: short frame buffer: got %d bytes, want %d", len(data), want)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, data[:want])
	return img, nil
}

// capsSize reads width and height from the first structure of caps.
func capsSize(caps *gst.Caps) (int, int, error) {
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, fmt.Errorf("gstsource: sample has no caps")
	}
	st := caps.GetStructureAt(0)

	w, err := intField(st, "width")
	if err != nil {
		return 0, 0, err
	}
	h, err := intField(st, "height")
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func intField(st *gst.Structure, name string) (int, error) {
	v, err := st.GetValue(name)
	if err != nil {
		return 0, fmt.Errorf("gstsource: caps field %q: %w", name, err)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint32:
		return int(n), nil
	default:
		return 0, fmt.Errorf("gstsource: caps field %q has type %T", name, v)
	}
}

// sampleImage converts an RGBA sample into an image.
func sampleImage(sample *gst.Sample) (*image.RGBA, error) {
	if sample == nil {
		return nil, fmt.Errorf("gstsource: nil sample")
	}
	w, h, err := capsSize(sample.GetCaps())
	if err != nil {
		return nil, err
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, fmt.Errorf("gstsource: sample has no buffer")
	}
	mapInfo := buffer.Map(gst.MapRead)
	defer buffer.Unmap()

	return toRGBA(mapInfo.Bytes(), w, h)
}
