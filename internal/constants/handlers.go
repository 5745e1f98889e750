package constants

// Handler limits
const (
	// MaxUploadSize is the largest multipart image upload accepted by match and identify
	MaxUploadSize = 32 << 20

	// MaxEncodeBodySize is the largest JSON body accepted when storing encodings.
	// Images are base64, so this allows roughly 190 MiB of image data.
	MaxEncodeBodySize = 256 << 20
)
