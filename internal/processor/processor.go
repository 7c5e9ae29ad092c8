// Package processor enriches input records one at a time and appends the
// resulting rows to the output table.
package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/people-email-enricher/internal/enrich"
	"github.com/JakeFAU/people-email-enricher/internal/metrics"
)

// CityResolver returns the candidate "City DIST" names for a ZIP code.
type CityResolver interface {
	Cities(ctx context.Context, zip string) ([]string, error)
}

// EmailFinder returns allow-listed emails for one person at one address.
type EmailFinder interface {
	Run(ctx context.Context, q enrich.Query) ([]string, error)
}

// Publisher receives one completion event per processed record.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Config controls Processor behavior.
type Config struct {
	RunID string
}

// RecordEvent is published after a record's rows are persisted.
type RecordEvent struct {
	RunID       string    `json:"run_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	ZIP         string    `json:"zip"`
	Rows        int       `json:"rows"`
	Emails      int       `json:"emails"`
	Errors      int       `json:"errors"`
	CompletedAt time.Time `json:"completed_at"`
}

// Summary totals a ProcessAll run.
type Summary struct {
	Records int
	Rows    int
	Errors  int
}

// Processor runs the postal and people-search lookups for each record.
type Processor struct {
	cities    CityResolver
	finder    EmailFinder
	store     enrich.Store
	publisher Publisher
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
}

// New constructs a Processor. publisher may be nil.
func New(
	cities CityResolver,
	finder EmailFinder,
	store enrich.Store,
	publisher Publisher,
	cfg Config,
	logger *zap.Logger,
) (*Processor, error) {
	if cities == nil {
		return nil, fmt.Errorf("city resolver is required")
	}
	if finder == nil {
		return nil, fmt.Errorf("email finder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cities:    cities,
		finder:    finder,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}, nil
}

// Process enriches rec and appends its rows to the store. Lookup failures become
// ERROR rows; the returned error is reserved for store failures and cancellation.
func (p *Processor) Process(ctx context.Context, rec enrich.InputRecord) ([]enrich.OutputRow, error) {
	logger := p.logger.With(
		zap.String("run_id", p.cfg.RunID),
		zap.String("name", rec.FullName()),
		zap.String("zip", rec.ZIP),
	)
	metrics.ObserveRecord()

	results, err := p.resolve(ctx, rec, logger)
	if err != nil {
		return nil, err
	}

	rows := enrich.Explode(results)
	if err := p.store.Append(ctx, rows); err != nil {
		return nil, fmt.Errorf("append rows for %s: %w", rec.FullName(), err)
	}

	event := RecordEvent{
		RunID:       p.cfg.RunID,
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
		ZIP:         rec.ZIP,
		Rows:        len(rows),
		CompletedAt: p.now().UTC(),
	}
	for _, row := range rows {
		metrics.ObserveRow(string(row.Status))
		if row.Status == enrich.StatusError {
			event.Errors++
		}
		if row.Email != "" {
			event.Emails++
		}
	}
	metrics.ObserveEmails(event.Emails)
	logger.Info("record processed",
		zap.Int("rows", event.Rows),
		zap.Int("emails", event.Emails),
		zap.Int("errors", event.Errors),
	)
	p.publish(ctx, event, logger)
	return rows, nil
}

// resolve builds one result per city candidate. A failed postal lookup yields a
// single ERROR result with no city; a failed search marks only that candidate.
func (p *Processor) resolve(ctx context.Context, rec enrich.InputRecord, logger *zap.Logger) ([]enrich.CandidateResult, error) {
	names, err := p.cities.Cities(ctx, rec.ZIP)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("context canceled: %w", ctxErr)
		}
		logger.Error("city lookup failed", zap.Error(err))
		return []enrich.CandidateResult{{Record: rec, Status: enrich.StatusError}}, nil
	}
	if len(names) == 0 {
		logger.Warn("no cities found for zip code")
		return nil, nil
	}

	results := make([]enrich.CandidateResult, 0, len(names))
	for _, name := range names {
		city := enrich.SplitCity(name)
		emails, err := p.finder.Run(ctx, enrich.NewQuery(rec, city))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("context canceled: %w", ctxErr)
			}
			logger.Error("people search failed",
				zap.String("city", city.City),
				zap.String("district", city.District),
				zap.Error(err),
			)
			results = append(results, enrich.CandidateResult{Record: rec, City: city, Status: enrich.StatusError})
			continue
		}
		results = append(results, enrich.CandidateResult{
			Record: rec,
			City:   city,
			Emails: emails,
			Status: enrich.StatusSuccess,
		})
	}
	return results, nil
}

func (p *Processor) publish(ctx context.Context, event RecordEvent, logger *zap.Logger) {
	if p.publisher == nil {
		return
	}
	id, err := p.publisher.Publish(ctx, event)
	if err != nil {
		logger.Warn("publish record event failed", zap.Error(err))
		return
	}
	logger.Debug("published record event", zap.String("message_id", id))
}

// ProcessAll processes records in order. It stops early only when the store
// fails or ctx is done; per-record lookup failures are recorded as ERROR rows.
func (p *Processor) ProcessAll(ctx context.Context, records []enrich.InputRecord) (Summary, error) {
	var summary Summary
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("context canceled: %w", err)
		}
		rows, err := p.Process(ctx, rec)
		if err != nil {
			return summary, err
		}
		summary.Records++
		summary.Rows += len(rows)
		for _, row := range rows {
			if row.Status == enrich.StatusError {
				summary.Errors++
			}
		}
	}
	return summary, nil
}

// Table loads the persisted rows and blanks repeated identity fields for display.
func (p *Processor) Table(ctx context.Context) ([]enrich.OutputRow, error) {
	return LoadTable(ctx, p.store)
}

// LoadTable reads every row from store and returns the presented view.
func LoadTable(ctx context.Context, store enrich.Store) ([]enrich.OutputRow, error) {
	rows, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load output table: %w", err)
	}
	return enrich.BlankDuplicates(rows), nil
}
