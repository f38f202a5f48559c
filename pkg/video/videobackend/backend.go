package videobackend

import (
	"context"
	"image"

	"github.com/spf13/afero"
	"github.com/tauraamui/xerror"
	"github.com/tauraamui/zedcv/pkg/configdef"
	"github.com/tauraamui/zedcv/pkg/relayerr"
	"github.com/tauraamui/zedcv/pkg/video/videoframe"
)

var fs = afero.NewOsFs()

// Decoder yields the frames of one opened video segment in order. Read
// returns io.EOF once the segment is exhausted, decoders cannot be rewound.
type Decoder interface {
	UUID() string
	Read(videoframe.Frame) error
	Close() error
}

type Backend interface {
	Open(context.Context, string) (Decoder, error)
	NewFrame() videoframe.Frame
	FrameFromImage(image.Image) (videoframe.Frame, error)
	Resize(videoframe.NoCloser, videoframe.Dimensions) (videoframe.Frame, error)
	EncodeJPEG(videoframe.NoCloser, int) ([]byte, error)
}

// openCancelled is the decode failure for a segment whose job was
// cancelled before its container finished opening.
func openCancelled(cause error) error {
	return relayerr.Decode(xerror.Errorf("open cancelled: %w", cause))
}

func Default() Backend {
	return OpenCV()
}

func OpenCV() Backend {
	return &openCVBackend{}
}

func GIF() Backend {
	return &gifBackend{}
}

func Resolve(t string) Backend {
	switch t {
	case configdef.BackendGIF:
		return GIF()
	default:
		return Default()
	}
}
