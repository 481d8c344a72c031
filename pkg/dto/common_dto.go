package dto

import "io"

// AvatarFile is an uploaded profile photo.
type AvatarFile struct {
	Reader   io.Reader
	FileName string
}

type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// NewListResponse never serialises a nil slice as null.
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, Total: len(items)}
}
