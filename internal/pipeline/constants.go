package pipeline

// Default values for per-request file processing.
// These can be overridden via configuration.
const (
	// DefaultConcurrency is the number of files processed at the same time.
	DefaultConcurrency = 4

	// LanguageArabic is the language code whose messages are rendered in Arabic.
	LanguageArabic = "ar"
)
