// internal/app/system/limits/limits.go
package limits

// Request body size limits for various features.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody is the maximum size of a JSON request body.
	MaxJSONBody = 1 << 20 // 1 MB

	// MaxUploadSize is the maximum size of one evidence file upload,
	// including multipart framing.
	MaxUploadSize = 25 << 20 // 25 MB

	// MaxMultipartMemory is how much of a multipart upload is held in
	// memory before spilling to temporary files.
	MaxMultipartMemory = 8 << 20 // 8 MB
)
