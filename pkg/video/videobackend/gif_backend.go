package videobackend

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/jpeg"
	"io"

	"github.com/google/uuid"
	"github.com/tauraamui/xerror"
	"github.com/tauraamui/zedcv/pkg/relayerr"
	"github.com/tauraamui/zedcv/pkg/video/videoframe"
	"golang.org/x/image/draw"
)

// imageFrame is the pure Go frame representation, pixels are always
// held as non premultiplied RGBA.
type imageFrame struct {
	img *image.RGBA
}

func (frame *imageFrame) DataRef() interface{} {
	return frame.img
}

func (frame *imageFrame) Dimensions() videoframe.Dimensions {
	if frame.img == nil {
		return videoframe.Dimensions{}
	}
	b := frame.img.Bounds()
	return videoframe.Dimensions{W: b.Dx(), H: b.Dy()}
}

func (frame *imageFrame) Close() {
	frame.img = nil
}

// gifBackend decodes animated GIF segments without any native
// dependency, each GIF frame becomes one raster frame.
type gifBackend struct{}

func (b *gifBackend) Open(ctx context.Context, path string) (Decoder, error) {
	if err := ctx.Err(); err != nil {
		return nil, openCancelled(err)
	}

	file, err := fs.Open(path)
	if err != nil {
		return nil, relayerr.Decode(err)
	}
	defer file.Close()

	g, err := gif.DecodeAll(file)
	if err != nil {
		return nil, relayerr.Decode(err)
	}

	return newGIFDecoder(g), nil
}

func (b *gifBackend) NewFrame() videoframe.Frame {
	return &imageFrame{}
}

func (b *gifBackend) FrameFromImage(img image.Image) (videoframe.Frame, error) {
	if img == nil {
		return nil, xerror.New("cannot create frame from nil image")
	}
	return &imageFrame{img: cloneImage(img)}, nil
}

func (b *gifBackend) Resize(frame videoframe.NoCloser, to videoframe.Dimensions) (videoframe.Frame, error) {
	src, ok := frame.DataRef().(*image.RGBA)
	if !ok || src == nil {
		return nil, xerror.New("must pass image frame to image resize")
	}

	dst := image.NewRGBA(image.Rect(0, 0, to.W, to.H))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return &imageFrame{img: dst}, nil
}

func (b *gifBackend) EncodeJPEG(frame videoframe.NoCloser, quality int) ([]byte, error) {
	img, ok := frame.DataRef().(*image.RGBA)
	if !ok || img == nil {
		return nil, xerror.New("must pass image frame to image encoder")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, xerror.Errorf("unable to encode frame as jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

type gifDecoder struct {
	uuid     string
	g        *gif.GIF
	next     int
	canvas   *image.RGBA
	previous *image.RGBA
}

func newGIFDecoder(g *gif.GIF) *gifDecoder {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		for _, p := range g.Image {
			bounds = bounds.Union(p.Bounds())
		}
	}
	return &gifDecoder{g: g, canvas: image.NewRGBA(bounds)}
}

func (d *gifDecoder) UUID() string {
	if len(d.uuid) == 0 {
		d.uuid = uuid.NewString()
	}
	return d.uuid
}

func (d *gifDecoder) Read(frame videoframe.Frame) error {
	f, ok := frame.(*imageFrame)
	if !ok {
		return xerror.New("must pass image frame to GIF decoder read")
	}
	if d.g == nil || d.next >= len(d.g.Image) {
		return io.EOF
	}

	if d.next > 0 {
		d.dispose(d.next - 1)
	}

	current := d.g.Image[d.next]
	if d.disposal(d.next) == gif.DisposalPrevious {
		d.previous = cloneImage(d.canvas)
	}
	draw.Draw(d.canvas, current.Bounds(), current, current.Bounds().Min, draw.Over)
	d.next++

	f.img = cloneImage(d.canvas)
	return nil
}

func (d *gifDecoder) disposal(i int) byte {
	if i < len(d.g.Disposal) {
		return d.g.Disposal[i]
	}
	return gif.DisposalNone
}

func (d *gifDecoder) dispose(i int) {
	switch d.disposal(i) {
	case gif.DisposalBackground:
		r := d.g.Image[i].Bounds()
		draw.Draw(d.canvas, r, image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		if d.previous != nil {
			draw.Draw(d.canvas, d.canvas.Bounds(), d.previous, d.previous.Bounds().Min, draw.Src)
		}
	}
}

func (d *gifDecoder) Close() error {
	d.g = nil
	d.canvas = nil
	d.previous = nil
	return nil
}

func cloneImage(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
