package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/png"
	"time"

	"github.com/ericpauley/go-quantize/quantize"

	"github.com/modelibr/thumbnail-service/internal/worker/domain"
)

// Options controls the encoded output.
type Options struct {
	Width  int
	Height int
	// FrameDelay is the equal per-frame duration of the loop.
	FrameDelay time.Duration
	// PosterFrame designates the "front" frame for the static poster.
	// Defaults to the first frame.
	PosterFrame int
}

// Artifact is one encoded output with its container metadata.
type Artifact struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Encode turns an ordered, non-empty frame sequence into a looping animated
// GIF plus a static PNG poster. It fails rather than silently producing an
// empty image when the sequence is empty or a frame's dimensions disagree
// with the declared output size.
func Encode(frames []image.Image, opts Options) (animated, poster *Artifact, err error) {
	if len(frames) == 0 {
		return nil, nil, domain.ErrEmptyFrameSequence
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, nil, fmt.Errorf("invalid output dimensions %dx%d", opts.Width, opts.Height)
	}

	for i, frame := range frames {
		bounds := frame.Bounds()
		if bounds.Dx() != opts.Width || bounds.Dy() != opts.Height {
			return nil, nil, fmt.Errorf("frame %d is %dx%d, expected %dx%d",
				i, bounds.Dx(), bounds.Dy(), opts.Width, opts.Height)
		}
	}

	animated, err = encodeGIF(frames, opts)
	if err != nil {
		return nil, nil, err
	}

	posterIndex := opts.PosterFrame
	if posterIndex < 0 || posterIndex >= len(frames) {
		posterIndex = 0
	}
	poster, err = encodePoster(frames[posterIndex])
	if err != nil {
		return nil, nil, err
	}

	return animated, poster, nil
}

func encodeGIF(frames []image.Image, opts Options) (*Artifact, error) {
	// GIF delays are in hundredths of a second; never drop below one tick.
	delay := int(opts.FrameDelay / (10 * time.Millisecond))
	if delay < 1 {
		delay = 1
	}

	quantizer := quantize.MedianCutQuantizer{}
	anim := &gif.GIF{
		LoopCount: 0, // infinite loop
	}

	for _, frame := range frames {
		palette := quantizer.Quantize(make(color.Palette, 0, 256), frame)

		paletted := image.NewPaletted(frame.Bounds(), palette)
		draw.Draw(paletted, frame.Bounds(), frame, frame.Bounds().Min, draw.Src)

		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}

	return &Artifact{
		Data:        buf.Bytes(),
		ContentType: "image/gif",
		Width:       opts.Width,
		Height:      opts.Height,
	}, nil
}

func encodePoster(frame image.Image) (*Artifact, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return nil, fmt.Errorf("encode poster: %w", err)
	}

	bounds := frame.Bounds()
	return &Artifact{
		Data:        buf.Bytes(),
		ContentType: "image/png",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}
