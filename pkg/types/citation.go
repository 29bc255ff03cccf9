// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the scholar-harvest pipeline.
package types

import "time"

// DownloadStatus tracks a citation through the retrieval state machine.
type DownloadStatus string

const (
	StatusPending      DownloadStatus = "pending"
	StatusDirect       DownloadStatus = "direct"
	StatusMirrorLookup DownloadStatus = "mirrorLookup"
	StatusChained      DownloadStatus = "chained"
	StatusCompleted    DownloadStatus = "completed"
	StatusFailed       DownloadStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s DownloadStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Citation is one publication reference discovered in an alert message.
// Empty string fields are absent values; a citation without a publisher URL
// is still kept and persisted.
type Citation struct {
	// ID is a process-generated UUID assigned at discovery. It never changes.
	ID string `json:"id" yaml:"id"`

	// MessageID identifies the mailbox message the link was extracted from.
	MessageID string `json:"message_id,omitempty" yaml:"message_id,omitempty"`

	// RawLink is the link exactly as it appeared in the message body.
	RawLink string `json:"raw_link" yaml:"raw_link"`

	// PublisherURL is the target of the alert redirect.
	PublisherURL string `json:"publisher_url,omitempty" yaml:"publisher_url,omitempty"`

	// DOI is the identifier extracted from PublisherURL.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Reference is the formatted bibliographic reference for DOI.
	Reference string `json:"reference,omitempty" yaml:"reference,omitempty"`

	// Status is the current download state.
	Status DownloadStatus `json:"download_status" yaml:"download_status"`

	// SourceURL is the URL the PDF was streamed from.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// PDFPath is the local path of the downloaded PDF once completed.
	PDFPath string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`

	// Failure holds the most recent soft failure reason.
	Failure string `json:"failure,omitempty" yaml:"failure,omitempty"`

	// DiscoveredAt is when the link was extracted.
	DiscoveredAt time.Time `json:"discovered_at" yaml:"discovered_at"`
}

// HasPublisherURL reports whether link resolution produced a target URL.
func (c *Citation) HasPublisherURL() bool {
	return c.PublisherURL != ""
}

// HasDOI reports whether a DOI was extracted.
func (c *Citation) HasDOI() bool {
	return c.DOI != ""
}
