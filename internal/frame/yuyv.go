// Package frame turns raw camera payloads into JPEG frames.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
)

// ErrShortFrame is returned when a buffer holds fewer bytes than one frame.
var ErrShortFrame = errors.New("short frame")

// DecodeYUY2 converts a packed YUY2 (Y0 U Y1 V) buffer into a 4:2:2 YCbCr image.
func DecodeYUY2(buf []byte, width, height int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("invalid YUY2 dimensions %dx%d", width, height)
	}
	need := width * height * 2
	if len(buf) < need {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrShortFrame, len(buf), need)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := buf[y*width*2 : (y+1)*width*2]
		yOff := y * img.YStride
		cOff := y * img.CStride
		for x := 0; x < width/2; x++ {
			p := row[x*4 : x*4+4]
			img.Y[yOff+2*x] = p[0]
			img.Cb[cOff+x] = p[1]
			img.Y[yOff+2*x+1] = p[2]
			img.Cr[cOff+x] = p[3]
		}
	}
	return img, nil
}

// EncodeJPEG compresses img at the given quality (1..100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
