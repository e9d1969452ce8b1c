package editor

// Container is the mount point the host dialog provides for the editor
// widget. The host may hand out the container before it is actually attached
// to a live view, so Attached must be cheap enough to poll.
type Container interface {
	Attached() bool
}

// Widget is the embedded rich-text editor instance. Implementations receive
// and return editor-decorated HTML; transcoding to and from raw placeholder
// tokens is the Manager's job.
type Widget interface {
	SetHTML(html string) error
	HTML() (string, error)
	DisableSpellcheck()
	Destroy()
}

// Factory builds a Widget bound to an attached container.
type Factory interface {
	New(c Container) (Widget, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(c Container) (Widget, error)

func (f FactoryFunc) New(c Container) (Widget, error) { return f(c) }
