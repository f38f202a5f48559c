package videobackend

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/tauraamui/xerror"
	"github.com/tauraamui/zedcv/pkg/relayerr"
	"github.com/tauraamui/zedcv/pkg/video/videoframe"
	"gocv.io/x/gocv"
)

// openCVFrame holds pixels in OpenCV's native BGR order, every frame this
// backend produces uses that convention.
type openCVFrame struct {
	isClosed bool
	mat      gocv.Mat
}

func (frame *openCVFrame) DataRef() interface{} {
	return &frame.mat
}

func (frame *openCVFrame) Dimensions() videoframe.Dimensions {
	return videoframe.Dimensions{W: frame.mat.Cols(), H: frame.mat.Rows()}
}

func (frame *openCVFrame) Close() {
	if !frame.isClosed {
		frame.mat.Close()
		frame.isClosed = true
	}
}

type openCVBackend struct{}

func (b *openCVBackend) Open(cancel context.Context, path string) (Decoder, error) {
	dec := openCVDecoder{}
	if err := dec.open(cancel, path); err != nil {
		return nil, err
	}
	return &dec, nil
}

func (b *openCVBackend) NewFrame() videoframe.Frame {
	return &openCVFrame{mat: gocv.NewMat()}
}

func (b *openCVBackend) FrameFromImage(img image.Image) (videoframe.Frame, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, xerror.Errorf("unable to convert Go image into OpenCV mat: %w", err)
	}
	return &openCVFrame{mat: mat}, nil
}

func (b *openCVBackend) Resize(frame videoframe.NoCloser, to videoframe.Dimensions) (videoframe.Frame, error) {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return nil, xerror.New("must pass OpenCV frame to OpenCV resize")
	}
	if mat.Empty() {
		return nil, xerror.New("cannot resize empty frame")
	}

	dst := gocv.NewMat()
	gocv.Resize(*mat, &dst, image.Pt(to.W, to.H), 0, 0, gocv.InterpolationLinear)
	return &openCVFrame{mat: dst}, nil
}

func (b *openCVBackend) EncodeJPEG(frame videoframe.NoCloser, quality int) ([]byte, error) {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return nil, xerror.New("must pass OpenCV frame to OpenCV encoder")
	}
	if mat.Empty() {
		return nil, xerror.New("cannot encode empty frame")
	}

	buf, err := encodeMat(*mat, quality)
	if err != nil {
		return nil, xerror.Errorf("unable to encode frame as jpeg: %w", err)
	}
	defer buf.Close()

	encoded := buf.GetBytes()
	out := make([]byte, len(encoded))
	copy(out, encoded)
	return out, nil
}

var encodeMat = func(mat gocv.Mat, quality int) (*gocv.NativeByteBuffer, error) {
	return gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
}

type openCVDecoder struct {
	uuid string
	mu   sync.Mutex
	vc   *gocv.VideoCapture
}

func (d *openCVDecoder) open(cancel context.Context, path string) error {
	result := make(chan openVideoCaptureResult, 1)
	go openVideoStream(path, result)
	select {
	case r := <-result:
		if r.err != nil {
			return relayerr.Decode(r.err)
		}
		if r.vc == nil || !r.vc.IsOpened() {
			if r.vc != nil {
				r.vc.Close()
			}
			return relayerr.Decode(errors.New("video container could not be opened"))
		}
		d.vc = r.vc
		return nil
	case <-cancel.Done():
		go func() {
			if r := <-result; r.vc != nil {
				r.vc.Close()
			}
		}()
		return openCancelled(cancel.Err())
	}
}

type openVideoCaptureResult struct {
	vc  *gocv.VideoCapture
	err error
}

func openVideoStream(path string, d chan openVideoCaptureResult) {
	vc, err := openVideoCapture(path)
	d <- openVideoCaptureResult{vc: vc, err: err}
}

var openVideoCapture = func(path string) (*gocv.VideoCapture, error) {
	return gocv.VideoCaptureFile(path)
}

var readFromVideoCapture = func(vc *gocv.VideoCapture, mat *gocv.Mat) bool {
	return vc.Read(mat)
}

func (d *openCVDecoder) UUID() string {
	if len(d.uuid) == 0 {
		d.uuid = uuid.NewString()
	}
	return d.uuid
}

func (d *openCVDecoder) Read(frame videoframe.Frame) error {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to OpenCV decoder read")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !readFromVideoCapture(d.vc, mat) {
		return io.EOF
	}
	if mat.Empty() {
		return relayerr.Processing(errors.New("decoded empty frame"))
	}
	return nil
}

func (d *openCVDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vc == nil {
		return nil
	}
	err := d.vc.Close()
	d.vc = nil
	return err
}
