// Package caregen turns a completed purchase into care tasks, one line item at a time.
package caregen

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"plantcare/internal/careplan"
	"plantcare/internal/models"
	"plantcare/pkg/logger"
)

// ErrMissingListing is returned for line items that carry no listing reference.
var ErrMissingListing = errors.New("line item has no listing id")

// ListingStore reads and writes the care fields of a listing.
type ListingStore interface {
	GetListingCare(ctx context.Context, listingID string) (*models.Listing, error)
	UpdateCareTips(ctx context.Context, listingID string, tips []string) error
}

// TaskStore inserts generated tasks. The key makes the insert happen at most once;
// a key seen before reports zero inserted rows and no error.
type TaskStore interface {
	InsertCareTasks(ctx context.Context, key IdempotencyKey, tasks []models.CareTask) (int, error)
}

// CacheInvalidator drops a user's cached calendar after new tasks land.
type CacheInvalidator interface {
	InvalidateUserTasks(ctx context.Context, userID string)
}

// IdempotencyKey identifies one care generation: a purchase event and a listing.
type IdempotencyKey struct {
	EventID   string
	ListingID string
}

func (k IdempotencyKey) String() string {
	return k.EventID + ":" + k.ListingID
}

// Outcome is what happened to a single line item.
type Outcome int

const (
	OutcomeScheduled Outcome = iota // tasks derived from the listing's care data
	OutcomeFallback                 // generic tasks
	OutcomeDuplicate                // already generated for this event
	OutcomeSkipped                  // no listing reference
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeScheduled:
		return "scheduled"
	case OutcomeFallback:
		return "fallback"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Report summarises ProcessPurchase. Counts are keyed by outcome.
type Report struct {
	EventID      string
	Outcomes     map[Outcome]int
	TasksCreated int
}

// Generator coordinates parsing, scheduling and persistence.
type Generator struct {
	Listings ListingStore
	Tasks    TaskStore
	Cache    CacheInvalidator // optional

	// Concurrency above 1 processes line items of one purchase in parallel.
	Concurrency int
	// Now defaults to time.Now.
	Now func() time.Time
}

// New returns a Generator that processes line items sequentially.
func New(listings ListingStore, tasks TaskStore, cache CacheInvalidator) *Generator {
	return &Generator{Listings: listings, Tasks: tasks, Cache: cache, Concurrency: 1}
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// ProcessPurchase generates care tasks for every line item of ev. Failures are
// logged per item and never abort the other items; nothing is returned as an error.
func (g *Generator) ProcessPurchase(ctx context.Context, ev models.PurchaseEvent) Report {
	ctx = logger.With(ctx, "event_id", ev.ID, "user_id", ev.UserID)
	outcomes := make([]Outcome, len(ev.LineItems))
	created := make([]int, len(ev.LineItems))

	run := func(i int) {
		outcomes[i], created[i] = g.processLogged(ctx, ev, ev.LineItems[i])
	}

	if g.Concurrency <= 1 || len(ev.LineItems) < 2 {
		for i := range ev.LineItems {
			run(i)
		}
	} else {
		var eg errgroup.Group
		eg.SetLimit(g.Concurrency)
		for i := range ev.LineItems {
			eg.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = eg.Wait()
	}

	rep := Report{EventID: ev.ID, Outcomes: make(map[Outcome]int)}
	for i, o := range outcomes {
		rep.Outcomes[o]++
		rep.TasksCreated += created[i]
	}
	logger.Info(ctx, "Care generation finished",
		"line_items", len(ev.LineItems),
		"tasks_created", rep.TasksCreated,
		"failed", rep.Outcomes[OutcomeFailed],
		"skipped", rep.Outcomes[OutcomeSkipped],
		"duplicates", rep.Outcomes[OutcomeDuplicate])
	return rep
}

func (g *Generator) processLogged(ctx context.Context, ev models.PurchaseEvent, item models.LineItem) (out Outcome, created int) {
	ctx = logger.With(ctx, "line_item_id", item.ID, "listing_id", item.ListingID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Care generation panicked", "panic", fmt.Sprint(r))
			out, created = OutcomeFailed, 0
		}
	}()

	out, created, err := g.ProcessLineItem(ctx, ev, item)
	switch {
	case errors.Is(err, ErrMissingListing):
		logger.Warn(ctx, "Line item skipped", "product_id", item.ProductID, "error", err)
	case err != nil:
		logger.Error(ctx, "Care generation failed for line item", "error", err)
	default:
		logger.Info(ctx, "Care tasks generated", "outcome", out.String(), "tasks", created)
	}
	return out, created
}

// ProcessLineItem runs the pipeline for one purchased listing: fetch, parse,
// schedule or fall back, persist. It returns the number of inserted tasks.
func (g *Generator) ProcessLineItem(ctx context.Context, ev models.PurchaseEvent, item models.LineItem) (Outcome, int, error) {
	if item.ListingID == "" {
		return OutcomeSkipped, 0, ErrMissingListing
	}
	listing, err := g.Listings.GetListingCare(ctx, item.ListingID)
	if err != nil {
		return OutcomeFailed, 0, fmt.Errorf("load listing %s: %w", item.ListingID, err)
	}

	res := careplan.Parse(listing.CareDetails)
	logger.Debug(ctx, "Care details parsed",
		"shape", res.Shape.String(),
		"essential_tasks", len(res.Plan.EssentialTasks),
		"tips", len(res.Plan.AllTips))

	if len(res.Plan.AllTips) > 0 && !slices.Equal(res.Plan.AllTips, listing.CareTips) {
		// A failed tips write does not stop task insertion.
		if err := g.Listings.UpdateCareTips(ctx, item.ListingID, res.Plan.AllTips); err != nil {
			logger.Error(ctx, "Failed to store care tips", "error", err)
		}
	}

	outcome := OutcomeScheduled
	if len(res.Plan.EssentialTasks) == 0 {
		outcome = OutcomeFallback
		logger.Warn(ctx, "No actionable tasks found; using generic tasks", "shape", res.Shape.String())
	}
	tasks := BuildTasks(careplan.Plan(res, g.now()), ev.UserID, item.ListingID)

	key := IdempotencyKey{EventID: ev.ID, ListingID: item.ListingID}
	n, err := g.Tasks.InsertCareTasks(ctx, key, tasks)
	if err != nil {
		return OutcomeFailed, 0, fmt.Errorf("insert care tasks: %w", err)
	}
	if n == 0 {
		return OutcomeDuplicate, 0, nil
	}
	if g.Cache != nil {
		g.Cache.InvalidateUserTasks(ctx, ev.UserID)
	}
	return outcome, n, nil
}

// BuildTasks turns a schedule into rows ready for insertion.
func BuildTasks(schedule []careplan.ScheduledTask, userID, listingID string) []models.CareTask {
	tasks := make([]models.CareTask, 0, len(schedule))
	for _, s := range schedule {
		tasks = append(tasks, models.CareTask{
			ID:              uuid.New().String(),
			UserID:          userID,
			ListingID:       listingID,
			Title:           s.Title,
			TaskDescription: s.Description,
			DueDate:         s.DueDate,
			Completed:       false,
			IsOptional:      false,
		})
	}
	return tasks
}
