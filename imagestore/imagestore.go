// Package imagestore keeps uploaded images in a bounded in-memory LRU cache.
//
// Both the number of images and their total size are capped; the least recently read
// image goes first. Images are addressed by a random UUID.
package imagestore

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"shopwire/protocol"
)

var (
	ErrNotFound      = errors.New("imagestore: image not found")
	ErrTooLarge      = errors.New("imagestore: image too large")
	ErrInvalidFormat = errors.New("imagestore: unsupported image format")
)

var formats = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true}

// NormalizeFormat lower-cases format and checks it is one the shop accepts.
func NormalizeFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	if !formats[f] {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	return f, nil
}

// Image is a stored image and what it belongs to.
type Image struct {
	ID        string
	Type      protocol.ImageType
	Filename  string
	Format    string
	RelatedID int32
	Data      []byte
}

// URL is where clients refer to the image.
func (img Image) URL() string {
	return fmt.Sprintf("/images/%s/%s.%s", strings.ToLower(img.Type.String()), img.ID, img.Format)
}

type Store struct {
	cache    *lru.Cache
	maxImage int
	maxBytes int64
	bytes    atomic.Int64
}

// New returns a store holding at most maxImages images and maxBytes bytes, each image
// at most maxImage bytes.
func New(maxImages, maxImage int, maxBytes int64) (*Store, error) {
	s := &Store{maxImage: maxImage, maxBytes: maxBytes}
	c, err := lru.NewWithEvict(maxImages, func(_, value interface{}) {
		s.bytes.Add(-int64(len(value.(Image).Data)))
	})
	if err != nil {
		return nil, err
	}
	s.cache = c
	return s, nil
}

// Put stores img under a fresh id and returns the stored image.
func (s *Store) Put(img Image) (Image, error) {
	if s.maxImage > 0 && len(img.Data) > s.maxImage {
		return Image{}, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(img.Data), s.maxImage)
	}
	format, err := NormalizeFormat(img.Format)
	if err != nil {
		return Image{}, err
	}
	img.Format = format
	img.ID = uuid.NewString()

	s.bytes.Add(int64(len(img.Data)))
	s.cache.Add(img.ID, img)
	for s.maxBytes > 0 && s.bytes.Load() > s.maxBytes && s.cache.Len() > 1 {
		s.cache.RemoveOldest()
	}
	return img, nil
}

// Get returns the image with the given id.
func (s *Store) Get(id string) (Image, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return Image{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v.(Image), nil
}

// Delete removes the image with the given id.
func (s *Store) Delete(id string) error {
	if !s.cache.Contains(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.cache.Remove(id)
	return nil
}

// Len returns how many images are held.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Bytes returns the total size of the held images.
func (s *Store) Bytes() int64 {
	return s.bytes.Load()
}
