package llm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ImageStore writes generated images into a directory
type ImageStore struct {
	Dir string
}

// NewImageStore returns a store rooted at dir
func NewImageStore(dir string) *ImageStore {
	return &ImageStore{Dir: dir}
}

// Save writes data as <uuid>.png and returns its path
func (s *ImageStore) Save(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty image", ErrImageGenerationFailed)
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return Image{}, fmt.Errorf("%w: failed to create image directory: %v", ErrImageGenerationFailed, err)
	}

	path := filepath.Join(s.Dir, uuid.NewString()+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Image{}, fmt.Errorf("%w: failed to save image: %v", ErrImageGenerationFailed, err)
	}

	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Saved image")
	return Image{Path: path}, nil
}
