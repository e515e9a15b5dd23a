package texture

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Channel selects one source channel of a texture.
type Channel string

const (
	ChannelR Channel = "R"
	ChannelG Channel = "G"
	ChannelB Channel = "B"
	ChannelA Channel = "A"
)

// ParseChannel validates a channel selector from the texture manifest.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelR, ChannelG, ChannelB, ChannelA:
		return Channel(s), nil
	default:
		return "", fmt.Errorf("unknown texture channel %q", s)
	}
}

// ExtractChannel renders a source texture down to a standalone grayscale
// texture holding only the requested channel, at the fixed working
// resolution. The result feeds grayscale material inputs (roughness,
// metalness, height, ambient occlusion) where only one channel of the
// source is meaningful.
func ExtractChannel(src image.Image, ch Channel, workingResolution int) (*image.Gray, error) {
	if workingResolution <= 0 {
		return nil, fmt.Errorf("working resolution must be positive, got %d", workingResolution)
	}

	resized := imaging.Resize(src, workingResolution, workingResolution, imaging.Lanczos)

	out := image.NewGray(image.Rect(0, 0, workingResolution, workingResolution))
	for y := 0; y < workingResolution; y++ {
		for x := 0; x < workingResolution; x++ {
			c := resized.NRGBAAt(x, y)

			var value uint8
			switch ch {
			case ChannelR:
				value = c.R
			case ChannelG:
				value = c.G
			case ChannelB:
				value = c.B
			case ChannelA:
				value = c.A
			default:
				return nil, fmt.Errorf("unknown texture channel %q", ch)
			}

			out.SetGray(x, y, color.Gray{Y: value})
		}
	}

	return out, nil
}
