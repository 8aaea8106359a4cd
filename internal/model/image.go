package model

import "strings"

// Image is one uploaded screenshot. It is created when the request is parsed
// and discarded once the request completes.
type Image struct {
	Filename  string
	MediaType string
	Data      []byte
}

func (i Image) IsImage() bool {
	return strings.HasPrefix(i.MediaType, "image/")
}

func (i Image) Size() int64 {
	return int64(len(i.Data))
}
