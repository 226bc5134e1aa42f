package config

import "time"

// Default generation policy values. All of them are overridable through the
// YAML config; the pipeline never reads these directly.
const (
	// DefaultProviderCode identifies the built-in chat-completion gateway.
	DefaultProviderCode = "gateway"

	// DefaultQualityThreshold: questions scoring below this are weak.
	DefaultQualityThreshold = 6

	// DefaultMaxRegenerate bounds regeneration per run. Regenerating a
	// majority of an exam is never attempted; this keeps latency and cost
	// bounded for the common case of a few weak items.
	DefaultMaxRegenerate = 3

	// DefaultRegeneratedScore is assigned to regenerated questions without
	// re-running the evaluator.
	DefaultRegeneratedScore = 8

	// DefaultParseRetries: one stricter "JSON only" retry after a malformed
	// generation response before the attempt is declared fatal.
	DefaultParseRetries = 1

	// DefaultMaxDocumentBytes caps uploaded source documents at 15 MB.
	DefaultMaxDocumentBytes = 15 << 20

	// DefaultCollaboratorTimeout applies to the diagram and extractor calls.
	DefaultCollaboratorTimeout = 90 * time.Second

	// DatabaseConnMaxLifetime is the default lifetime of pooled connections.
	DatabaseConnMaxLifetime = 5 * time.Minute
)

// DefaultImageTriggerPhrases returns the Arabic phrases that indicate a
// question references a figure or diagram. Returned as a fresh slice so a
// caller cannot mutate the defaults of another.
func DefaultImageTriggerPhrases() []string {
	return []string{
		"في الشكل المقابل",
		"في الدائرة الموضحة",
		"الرسم البياني التالي",
		"المخطط",
		"المنحنى",
		"الشكل التالي",
		"كما هو موضح",
		"الشكل أدناه",
		"الدائرة المقابلة",
		"في الصورة",
	}
}
