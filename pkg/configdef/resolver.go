package configdef

import (
	"context"
	"errors"
)

var ErrConfigAlreadyExists = errors.New("config file already exists")

type Resolver interface {
	Resolve() (Values, error)
}

type Creator interface {
	Create() error
}

type Destroyer interface {
	Destroy() error
}

type CreateResolver interface {
	Creator
	Resolver
}

// Watcher invokes onChange with the freshly validated values every time
// the underlying config source changes, until the returned channel closes.
type Watcher interface {
	Watch(ctx context.Context, onChange func(Values)) (chan interface{}, error)
}
