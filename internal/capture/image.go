package capture

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxImageBytes caps inline uploads; the API rejects larger inline payloads.
const MaxImageBytes = 20 << 20

// ImageExtensions lists the file types offered by the picker.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif", ".heic", ".heif"}

// ReadImage loads an image file and works out its mime type from the content,
// falling back to the extension.
func ReadImage(path string) (Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, err
	}
	if info.Size() > MaxImageBytes {
		return Image{}, fmt.Errorf("%s is too large (%d bytes)", filepath.Base(path), info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return Image{}, fmt.Errorf("%s does not look like an image", filepath.Base(path))
	}
	return Image{Name: filepath.Base(path), MimeType: mimeType, Data: data}, nil
}

// LoadImage reads path and stores it as the pending image.
func (c *Controller) LoadImage(path string) (Image, error) {
	img, err := ReadImage(path)
	if err != nil {
		return Image{}, err
	}
	c.SetImage(img)
	return img, nil
}
