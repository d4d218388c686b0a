package extraction

import (
	"context"

	"github.com/docsmith/docex-api/internal/domain"
)

// Request describes one stored file to extract.
type Request struct {
	// FilePath is the sandboxed location of the uploaded bytes.
	FilePath string

	// MediaType is the sniffed media type of the file.
	MediaType string

	// SourceName is the original filename, used only for logging.
	SourceName string
}

// Extractor defines the boundary between the worker and the external AI
// extraction service. Implementations must respect ctx cancellation: the
// worker cancels the context on revocation and bounds every attempt with a
// timeout.
type Extractor interface {
	// Extract converts the referenced file into Markdown plus any detected
	// tables. Failures are classified with the sentinel errors in errors.go.
	Extract(ctx context.Context, req Request) (*domain.ExtractionResult, error)
}
