//go:build !dlib

package faceembed

// NewDlibExtractor reports that dlib support was not compiled in.
// Build with -tags dlib (requires libdlib and libjpeg) to enable it.
func NewDlibExtractor(modelsDir string, maxImageSide int) (Extractor, error) {
	return nil, ErrBackendUnavailable
}
