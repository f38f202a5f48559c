package videoframe

type Dimensions struct {
	W, H int
}

type NoCloser interface {
	DataRef() interface{}
	Dimensions() Dimensions
}

// Frame is an owned raster. Whoever holds it last must Close it, closing
// more than once is allowed.
type Frame interface {
	NoCloser
	Close()
}
