package skins

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Head geometry, in skin sheet and canvas pixels.
const (
	HeadSize = 36

	faceX, faceY = 8, 8
	hatX, hatY   = 40, 8
	faceTexels   = 8
	faceScaled   = 32
	faceOffset   = 2

	minSheetWidth  = hatX + faceTexels
	minSheetHeight = faceY + faceTexels
)

// DeriveHead builds the 36x36 avatar for a skin sheet: the 8x8 face scaled
// to 32x32 and centred, then the hat layer scaled to the full 36x36 and
// pasted over it through its own alpha. Output is a PNG and is byte
// identical for identical input.
func DeriveHead(skin []byte) ([]byte, error) {
	sheet, err := decodeSheet(skin, minSheetWidth, minSheetHeight)
	if err != nil {
		return nil, err
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, HeadSize, HeadSize))
	origin := sheet.Bounds().Min

	face := scaleRegion(sheet, image.Rect(faceX, faceY, faceX+faceTexels, faceY+faceTexels).Add(origin), faceScaled)
	maskPaste(canvas, face, image.Pt(faceOffset, faceOffset))

	hat := scaleRegion(sheet, image.Rect(hatX, hatY, hatX+faceTexels, hatY+faceTexels).Add(origin), HeadSize)
	maskPaste(canvas, hat, image.Pt(0, 0))

	return encodePNG(canvas)
}

// decodeSheet decodes a skin and checks it is large enough for the regions we read.
func decodeSheet(raw []byte, minWidth, minHeight int) (image.Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty skin", ErrDecode)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode skin: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() < minWidth || b.Dy() < minHeight {
		return nil, fmt.Errorf("%w: skin is %dx%d, need at least %dx%d", ErrDecode, b.Dx(), b.Dy(), minWidth, minHeight)
	}
	return img, nil
}

// scaleRegion cuts r out of src and scales it to size x size with nearest
// neighbour sampling, keeping straight (non premultiplied) alpha.
func scaleRegion(src image.Image, r image.Rectangle, size int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, r, xdraw.Src, nil)
	return dst
}

// maskPaste blends src into dst at off using src's alpha as the mask on all
// four channels: out = src*a + dst*(1-a).
func maskPaste(dst, src *image.NRGBA, off image.Point) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			s := src.NRGBAAt(x, y)
			if s.A == 0 {
				continue
			}
			dx, dy := x-b.Min.X+off.X, y-b.Min.Y+off.Y
			if s.A == 0xff {
				dst.SetNRGBA(dx, dy, s)
				continue
			}
			d := dst.NRGBAAt(dx, dy)
			a := uint32(s.A)
			dst.SetNRGBA(dx, dy, color.NRGBA{
				R: blend(s.R, d.R, a),
				G: blend(s.G, d.G, a),
				B: blend(s.B, d.B, a),
				A: blend(s.A, d.A, a),
			})
		}
	}
}

func blend(s, d uint8, a uint32) uint8 {
	return uint8((uint32(s)*a + uint32(d)*(0xff-a) + 0x7f) / 0xff)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
