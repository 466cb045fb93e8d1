// Package export serializes finished transcripts into text, subtitle, data,
// and document formats.
//
// Serialization is pure: it never touches the job that produced the
// transcript, and WriteFile is the only function that performs I/O. DOCX and
// PDF output depend on a Renderer registered with NewSerializer; the package
// itself only builds the format-neutral Document they consume.
package export
