package page

// Page is implemented by every specialized page view and by Framed
// itself, so an unrecognized type still satisfies the interface.
type Page interface {
	Framing() *Framed
	Type() Type
	PageNumber() uint32
}

// Framing implements Page for the generic, untyped view.
func (f *Framed) Framing() *Framed { return f }

// Type implements Page.
func (f *Framed) Type() Type { return f.PageType }

// PageNumber implements Page.
func (f *Framed) PageNumber() uint32 { return f.PageNo }
