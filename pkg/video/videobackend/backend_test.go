package videobackend_test

import (
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/zedcv/pkg/video/videobackend"
)

func TestVideoBackendDefaultBackend(t *testing.T) {
	is := is.New(t)
	is.True(videobackend.Default() != nil)
}

func TestResolveBackendByName(t *testing.T) {
	is := is.New(t)
	is.Equal(videobackend.Resolve("gif"), videobackend.GIF())
	is.Equal(videobackend.Resolve("opencv"), videobackend.OpenCV())
	is.Equal(videobackend.Resolve(""), videobackend.OpenCV())
}
