package cache

import (
	"path/filepath"
	"strings"
)

const (
	// TensorExt is appended to the image file name for cached tensors
	TensorExt = ".tensor"
	// ProcessedImageExt is appended to the image file name for the resized
	// RGB network input
	ProcessedImageExt = ".png"
)

// Mapper maps image files to their cache files.  A relative Home is
// resolved against each image's directory.  An absolute Home holds the cache
// files of every image, laid out by the image path relative to Root so
// images of the same name in different directories do not collide.
type Mapper struct {
	Home string
	// Root is the test set directory
	Root string
}

// NewMapper returns a Mapper rooted at home for the images under root
func NewMapper(home, root string) Mapper {
	return Mapper{Home: home, Root: root}
}

// TensorFile returns the cache file of the network output for image
func (m Mapper) TensorFile(image string) string {
	return m.file(image, TensorExt)
}

// ProcessedImageFile returns the cache file of the processed network input
// for image
func (m Mapper) ProcessedImageFile(image string) string {
	return m.file(image, ProcessedImageExt)
}

func (m Mapper) file(image, ext string) string {

	if !filepath.IsAbs(m.Home) {
		return filepath.Join(filepath.Dir(image), m.Home, filepath.Base(image)+ext)
	}

	return filepath.Join(m.Home, m.key(image)+ext)
}

// key returns the path of image below Root, or its absolute path when it is
// outside Root
func (m Mapper) key(image string) string {

	abs, err := filepath.Abs(image)

	if err != nil {
		abs = filepath.Clean(image)
	}

	if m.Root != "" {
		root, err := filepath.Abs(m.Root)

		if err == nil {
			rel, err := filepath.Rel(root, abs)

			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return rel
			}
		}
	}

	return strings.TrimPrefix(abs, filepath.VolumeName(abs))
}
