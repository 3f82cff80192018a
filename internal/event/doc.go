// Package event defines the civic event model shared by both pipelines.
//
// CanonicalEvent is the curated, validated record served by the events feed
// and calendar export; its enumerations (EventType, OfficeLevel, Party) are
// closed and enforced by Validate. NewsItem is the ephemeral scraped record
// produced by the community feed, identified by a content-derived id from
// NewsItemID.
package event
