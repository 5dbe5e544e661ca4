// Package classifier turns a free-text customer message into an intent and a
// risk flag with a single language-model call. It defines the Provider
// boundary the LLM backends implement and the typed ClassificationError every
// failure is reported as.
package classifier
