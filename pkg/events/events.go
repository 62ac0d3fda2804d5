// Package events defines catalog lifecycle notifications exchanged between
// the API process and the refresh trigger.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries all catalog events.
const Topic = "flowvector.catalog"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	CatalogRefreshRequestedEvent EventType = "catalog.refresh.requested"
	CatalogRefreshedEvent        EventType = "catalog.refreshed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// CatalogRefreshRequested asks the ingestion side to re-read the descriptor
// snapshot and rebuild the vector collections.
type CatalogRefreshRequested struct {
	BaseEvent

	// Reason is free text for operators: "cron", "manual", "startup".
	Reason string `json:"reason"`

	// SnapshotPath optionally points at a specific snapshot file; empty means
	// the subscriber's configured default.
	SnapshotPath string `json:"snapshot_path,omitempty"`
}

func NewCatalogRefreshRequested(reason, snapshotPath string) *CatalogRefreshRequested {
	return &CatalogRefreshRequested{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      CatalogRefreshRequestedEvent,
			Timestamp: time.Now().UTC(),
		},
		Reason:       reason,
		SnapshotPath: snapshotPath,
	}
}

func (e CatalogRefreshRequested) GetType() EventType {
	return CatalogRefreshRequestedEvent
}

// CatalogRefreshed reports a completed ingestion run.
type CatalogRefreshed struct {
	BaseEvent

	NodeCount     int           `json:"node_count"`
	TemplateCount int           `json:"template_count"`
	Duration      time.Duration `json:"duration"`
}

func NewCatalogRefreshed(nodeCount, templateCount int, duration time.Duration) *CatalogRefreshed {
	return &CatalogRefreshed{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      CatalogRefreshedEvent,
			Timestamp: time.Now().UTC(),
		},
		NodeCount:     nodeCount,
		TemplateCount: templateCount,
		Duration:      duration,
	}
}

func (e CatalogRefreshed) GetType() EventType {
	return CatalogRefreshedEvent
}
