// Package app composes the assessment domain into the two use cases the
// service exposes: starting (or resuming) a placement session and
// submitting an answer. All store access goes through the ports below so
// the orchestrators can be tested against in-memory fakes.
package app

import (
	"context"
	"time"

	"flightpath/internal/assessment"
)

// Clock abstracts wall-clock time. All timestamps are UTC.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// AssignmentRepository loads and persists the assignment aggregate,
// including its active session and responses. Absence is a nil aggregate,
// not an error.
type AssignmentRepository interface {
	GetByID(ctx context.Context, assignedID string) (*assessment.Assignment, error)
	GetBySessionID(ctx context.Context, sessionID string) (*assessment.Assignment, error)
	GetPendingByTestTaker(ctx context.Context, testTakerID, templateID string) (*assessment.Assignment, error)
	// Save upserts the aggregate: assignment status fields, the session, and
	// every response, inside the surrounding unit of work.
	Save(ctx context.Context, assignment *assessment.Assignment) error
	// Create inserts a newly assigned assessment.
	Create(ctx context.Context, assignment *assessment.Assignment) error
}

// ItemRepository reads the immutable item catalog.
type ItemRepository interface {
	GetItem(ctx context.Context, itemID string) (*assessment.Item, error)
	// GetItemsBySkillAreas returns active items linked to the template whose
	// skill areas overlap any of skillAreas (all of them when the filter is
	// empty), excluding the given item ids.
	GetItemsBySkillAreas(ctx context.Context, templateID string, skillAreas, excludeItemIDs []string) ([]assessment.Item, error)
}

// ConfigRepository reads assessment configurations.
type ConfigRepository interface {
	GetConfigByTemplate(ctx context.Context, templateID string) (*assessment.Config, error)
}

// TemplateRepository reads assessment templates.
type TemplateRepository interface {
	GetTemplate(ctx context.Context, templateID string) (*assessment.Template, error)
}

// Repositories bundles the transaction-scoped ports handed to a unit of
// work callback.
type Repositories struct {
	Assignments AssignmentRepository
	Items       ItemRepository
	Configs     ConfigRepository
	Templates   TemplateRepository
}

// UnitOfWork scopes one transactional boundary. Do commits when fn returns
// nil and rolls back otherwise, including on panic.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
