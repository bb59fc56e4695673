// Package ingest implements the batch-drain ingest adapter (C11): a
// periodic poll of a REST endpoint that returns pages of order, trade,
// and cancel events, used for back-filling history or driving the
// engine from a source that has no WebSocket push interface.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"riskengine/pkg/types"
)

// Batch is one page of events returned by the upstream endpoint.
type Batch struct {
	Orders  []types.Order  `json:"orders"`
	Trades  []types.Trade  `json:"trades"`
	Cancels []types.Cancel `json:"cancels"`
	Cursor  string         `json:"cursor"`
	HasMore bool           `json:"has_more"`
}

// Result is what one poll cycle delivers on the Results channel: every
// event collected across every page drained in that cycle.
type Result struct {
	Orders  []types.Order
	Trades  []types.Trade
	Cancels []types.Cancel
}

// Ingestor periodically drains a paginated REST endpoint.
type Ingestor struct {
	http         *resty.Client
	pollInterval time.Duration
	maxPages     int
	logger       *slog.Logger
	resultCh     chan Result
}

// New creates an ingestor pointed at baseURL, polling every
// pollInterval. maxPages bounds how many pages a single poll cycle will
// drain, so a backed-up upstream cannot stall the caller indefinitely.
func New(baseURL string, pollInterval time.Duration, maxPages int, logger *slog.Logger) *Ingestor {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &Ingestor{
		http:         client,
		pollInterval: pollInterval,
		maxPages:     maxPages,
		logger:       logger.With("component", "ingest"),
		resultCh:     make(chan Result, 1),
	}
}

// Results returns the channel the engine reads drained batches from.
func (in *Ingestor) Results() <-chan Result {
	return in.resultCh
}

// Run starts the polling loop. Blocks until ctx is cancelled.
func (in *Ingestor) Run(ctx context.Context) {
	in.poll(ctx)

	ticker := time.NewTicker(in.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.poll(ctx)
		}
	}
}

func (in *Ingestor) poll(ctx context.Context) {
	result, err := in.drain(ctx)
	if err != nil {
		in.logger.Error("drain failed", "error", err)
		return
	}

	in.logger.Info("drain complete", "orders", len(result.Orders), "trades", len(result.Trades), "cancels", len(result.Cancels))

	select {
	case in.resultCh <- result:
	default:
		select {
		case <-in.resultCh:
		default:
		}
		in.resultCh <- result
	}
}

// drain fetches pages sequentially, bounded to maxPages: each page's
// cursor is only known once the previous page's response has been
// parsed, so there is no independent work here to run concurrently.
func (in *Ingestor) drain(ctx context.Context) (Result, error) {
	var result Result
	cursor := ""

	for page := 0; page < in.maxPages; page++ {
		var batch Batch
		if err := in.fetchPage(ctx, cursor, &batch); err != nil {
			return Result{}, fmt.Errorf("ingest: fetch page %d: %w", page, err)
		}

		result.Orders = append(result.Orders, batch.Orders...)
		result.Trades = append(result.Trades, batch.Trades...)
		result.Cancels = append(result.Cancels, batch.Cancels...)

		if !batch.HasMore {
			break
		}
		cursor = batch.Cursor
	}

	return result, nil
}

func (in *Ingestor) fetchPage(ctx context.Context, cursor string, out *Batch) error {
	resp, err := in.http.R().
		SetContext(ctx).
		SetQueryParam("cursor", cursor).
		SetResult(out).
		Get("/events")
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
