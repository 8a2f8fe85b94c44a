package clipboard

import (
	"bytes"
	"encoding/xml"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"unicode/utf8"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Kind is the payload type of a clipboard entry.
type Kind string

const (
	Text        Kind = "text"
	RasterImage Kind = "raster_image"
	VectorImage Kind = "vector_image"
	Blob        Kind = "blob"
)

// Entry is one clipboard history item.
type Entry struct {
	ID   uint64 `json:"id"`
	Kind Kind   `json:"kind"`
	// Text holds the payload of Text and VectorImage entries.
	Text string `json:"text,omitempty"`
	// Data holds the payload of RasterImage and Blob entries.
	Data   []byte `json:"data,omitempty"`
	MIME   string `json:"mime,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// NewEntry classifies payload. A recognized image container that decodes
// is a RasterImage; otherwise UTF-8 whose root element is <svg> is a
// VectorImage, other UTF-8 is Text, and anything else is a Blob.
//
// Only PNG, JPEG, GIF, BMP, TIFF and WebP have registered decoders. Other
// recognized images (ICO, HEIF, AVIF, PSD, JXR) and truncated ones are kept
// as a Blob carrying the detected MIME type.
func NewEntry(id uint64, payload []byte) Entry {
	if filetype.IsImage(payload) {
		var mime string
		if t, err := filetype.Match(payload); err == nil {
			mime = t.MIME.Value
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
		if err != nil {
			return Entry{ID: id, Kind: Blob, Data: payload, MIME: mime}
		}
		return Entry{ID: id, Kind: RasterImage, Data: payload, MIME: mime, Width: cfg.Width, Height: cfg.Height}
	}
	if utf8.Valid(payload) {
		if isSVG(payload) {
			return Entry{ID: id, Kind: VectorImage, Text: string(payload), MIME: "image/svg+xml"}
		}
		return Entry{ID: id, Kind: Text, Text: string(payload)}
	}
	return Entry{ID: id, Kind: Blob, Data: payload}
}

// Bytes returns the raw payload.
func (e Entry) Bytes() []byte {
	switch e.Kind {
	case Text, VectorImage:
		return []byte(e.Text)
	case RasterImage, Blob:
		return e.Data
	}
	return nil
}

// Equal compares two entries by id, kind and payload.
func (e Entry) Equal(o Entry) bool {
	return e.ID == o.ID && e.Kind == o.Kind && e.Text == o.Text && bytes.Equal(e.Data, o.Data)
}

// isSVG reports whether the first element of an XML document is <svg>.
func isSVG(payload []byte) bool {
	decoder := xml.NewDecoder(bytes.NewReader(payload))
	decoder.Strict = false
	for {
		token, err := decoder.Token()
		if err != nil {
			return false
		}
		switch t := token.(type) {
		case xml.StartElement:
			return t.Name.Local == "svg"
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		}
	}
}
