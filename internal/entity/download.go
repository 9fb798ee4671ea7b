package entity

import "io"

// Download is an upstream file being relayed to the client. Size is -1 when unknown.
type Download struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}
