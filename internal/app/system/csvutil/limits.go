// internal/app/system/csvutil/limits.go
package csvutil

// Upload size and row limits for CSV processing.
const (
	MaxUploadSize = 5 << 20 // 5 MB
	MaxRows       = 20000
)

// Score bounds accepted in a mastery import.
const (
	MinScore = 0
	MaxScore = 100
)
