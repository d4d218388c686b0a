// Package extraction provides the interface and implementation for turning
// uploaded documents into Markdown via an external AI model. It abstracts the
// details of the Gemini API integration, allowing the worker to process jobs
// without coupling to a specific external service.
package extraction
