package vfs

import (
	"io"
)

// Element only carries metadata until it is opened or listed.
type Element interface {
	Name() string
	IsDirectory() bool
}

// Stream is an opened file. Whoever receives it closes it.
type Stream interface {
	io.ReadSeeker
	io.Closer
}

type File interface {
	Element
	Size() int64
	// Path is the location mesh metadata sidecars are resolved against
	Path() string
	Open() (Stream, error)
}

type Directory interface {
	Element
	List() ([]string, error)
	GetElement(name string) (Element, error)
}
