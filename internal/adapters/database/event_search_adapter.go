package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/swingfinder/festival-finder/internal/domain/entities"
	"github.com/swingfinder/festival-finder/internal/domain/repositories"
	"github.com/swingfinder/festival-finder/internal/domain/search"
	"github.com/swingfinder/festival-finder/internal/infrastructure/clients/postgres"
	"github.com/swingfinder/festival-finder/internal/infrastructure/observability"
)

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// EventSearchAdapter implements EventSearchRepository on PostgreSQL.
// The count and page queries share one compiled predicate and run
// concurrently, or inside one read-only transaction in snapshot mode.
type EventSearchAdapter struct {
	client    *postgres.Client
	db        *goqu.Database
	metrics   *observability.Metrics
	snapshot  bool
	isolation search.IsolationLevel
}

// EventSearchOption configures an EventSearchAdapter
type EventSearchOption func(*EventSearchAdapter)

// WithSnapshotReads makes count and page read from one snapshot
func WithSnapshotReads(level search.IsolationLevel) EventSearchOption {
	return func(a *EventSearchAdapter) {
		a.snapshot = true
		a.isolation = level
	}
}

// WithSearchMetrics records query durations on m
func WithSearchMetrics(m *observability.Metrics) EventSearchOption {
	return func(a *EventSearchAdapter) {
		a.metrics = m
	}
}

// NewEventSearchAdapter creates a new event search adapter
func NewEventSearchAdapter(client *postgres.Client, opts ...EventSearchOption) repositories.EventSearchRepository {
	a := &EventSearchAdapter{
		client:    client,
		db:        goqu.New("postgres", client.DB()),
		isolation: search.IsolationRepeatableRead,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SearchWithCount returns one page of matching events and the total
func (a *EventSearchAdapter) SearchWithCount(ctx context.Context, q search.Query) (*search.Page, error) {
	ctx, span := observability.StartSpan(ctx, "EventSearchAdapter.SearchWithCount")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.Bool("search.ranked", q.Ordering.Ranked),
		attribute.Bool("search.snapshot", a.snapshot),
		attribute.Int("search.limit", q.Limit),
		attribute.Int("search.offset", q.Offset),
	)

	countSQL, countArgs, err := a.countQuery(q).ToSQL()
	if err != nil {
		return nil, classify("failed to build count query", err)
	}
	pageSQL, pageArgs, err := a.pageQuery(q).ToSQL()
	if err != nil {
		return nil, classify("failed to build search query", err)
	}

	ctx, cancel := a.client.WithQueryTimeout(ctx)
	defer cancel()

	start := time.Now()
	var page *search.Page
	if a.snapshot {
		page, err = a.searchSnapshot(ctx, q, countSQL, countArgs, pageSQL, pageArgs)
	} else {
		page, err = a.searchConcurrent(ctx, q, countSQL, countArgs, pageSQL, pageArgs)
	}
	observability.RecordDBMetric(ctx, a.metrics, "search_events", time.Since(start))

	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	observability.SetSpanAttributes(span, attribute.Int64("search.total", page.Total))
	return page, nil
}

// Ping verifies the connection to the database
func (a *EventSearchAdapter) Ping(ctx context.Context) error {
	ctx, cancel := a.client.WithQueryTimeout(ctx)
	defer cancel()
	if err := a.client.Ping(ctx); err != nil {
		return classify("database ping failed", err)
	}
	return nil
}

func (a *EventSearchAdapter) searchConcurrent(ctx context.Context, q search.Query, countSQL string, countArgs []interface{}, pageSQL string, pageArgs []interface{}) (*search.Page, error) {
	var total int64
	var rows []entities.EventSearchResult

	// count and page must see the same replica
	db := a.client.Reader()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = count(gctx, db, countSQL, countArgs)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = fetchPage(gctx, db, q.Ordering.Ranked, pageSQL, pageArgs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, classify("failed to search events", err)
	}

	return newPage(total, rows), nil
}

func (a *EventSearchAdapter) searchSnapshot(ctx context.Context, q search.Query, countSQL string, countArgs []interface{}, pageSQL string, pageArgs []interface{}) (*search.Page, error) {
	tx, err := a.client.BeginReadOnlyTx(ctx, a.isolation.SQL())
	if err != nil {
		return nil, classify("failed to begin search transaction", err)
	}
	defer tx.Rollback()

	total, err := count(ctx, tx, countSQL, countArgs)
	if err != nil {
		return nil, classify("failed to count events", err)
	}
	rows, err := fetchPage(ctx, tx, q.Ordering.Ranked, pageSQL, pageArgs)
	if err != nil {
		return nil, classify("failed to search events", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("failed to commit search transaction", err)
	}

	return newPage(total, rows), nil
}

func (a *EventSearchAdapter) countQuery(q search.Query) *goqu.SelectDataset {
	ds := a.db.From(entities.EventsTable).
		Select(goqu.COUNT(goqu.Star())).
		Prepared(true)
	if where := compilePredicate(q.Predicate); where != nil {
		ds = ds.Where(where)
	}
	return ds
}

func (a *EventSearchAdapter) pageQuery(q search.Query) *goqu.SelectDataset {
	columns := entities.EventColumns()
	selects := make([]interface{}, 0, len(columns)+1)
	for _, col := range columns {
		selects = append(selects, goqu.C(string(col)))
	}
	if q.Ordering.Ranked {
		selects = append(selects, rankExpression(q.Ordering.RankQuery).As(search.RankKey))
	}

	ds := a.db.From(entities.EventsTable).
		Select(selects...).
		Order(orderExpressions(q.Ordering)...).
		Limit(uint(q.Limit)).
		Offset(uint(q.Offset)).
		Prepared(true)
	if where := compilePredicate(q.Predicate); where != nil {
		ds = ds.Where(where)
	}
	return ds
}

// compilePredicate turns a predicate into a goqu expression, or nil for
// the tautology. Values are always bound parameters.
func compilePredicate(p search.Predicate) exp.Expression {
	if p.IsEmpty() {
		return nil
	}
	return compileNode(p.And)
}

func compileNode(n search.Node) exp.Expression {
	switch node := n.(type) {
	case search.Contains:
		return goqu.C(string(node.Field)).ILike(search.ContainsPattern(node.Value))
	case search.Or:
		return goqu.Or(compileNodes(node.Nodes)...)
	case search.And:
		return goqu.And(compileNodes(node.Nodes)...)
	case search.Predicate:
		return compileNode(node.And)
	default:
		panic(fmt.Sprintf("database: unsupported predicate node %T", n))
	}
}

func compileNodes(nodes []search.Node) []exp.Expression {
	out := make([]exp.Expression, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, compileNode(n))
	}
	return out
}

// rankExpression is the CASE computing the relevance tier of a row
func rankExpression(query string) exp.CaseExpression {
	pattern := search.ContainsPattern(query)
	rank := goqu.Case()
	for _, tier := range search.RankTable() {
		rank = rank.When(goqu.C(string(tier.Field)).ILike(pattern), rankLiteral(tier.Rank))
	}
	return rank.Else(rankLiteral(search.NoMatchRank))
}

func rankLiteral(rank float64) exp.CastExpression {
	return goqu.Cast(goqu.V(rank), "DOUBLE PRECISION")
}

func orderExpressions(o search.Ordering) []exp.OrderedExpression {
	keys := o.Keys()
	out := make([]exp.OrderedExpression, 0, len(keys))
	for _, key := range keys {
		var col exp.IdentifierExpression
		if key.Field == search.RankKey {
			col = goqu.I(search.RankKey)
		} else {
			col = goqu.C(key.Field)
		}

		ordered := col.Asc()
		if key.Order == search.SortOrderDesc {
			ordered = col.Desc()
		}
		if key.Nulls == search.NullsFirst {
			ordered = ordered.NullsFirst()
		} else {
			ordered = ordered.NullsLast()
		}
		out = append(out, ordered)
	}
	return out
}

func count(ctx context.Context, q querier, query string, args []interface{}) (int64, error) {
	var total int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return total, nil
}

func fetchPage(ctx context.Context, q querier, ranked bool, query string, args []interface{}) ([]entities.EventSearchResult, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	results := make([]entities.EventSearchResult, 0)
	for rows.Next() {
		r, err := scanEvent(rows, ranked)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return results, nil
}

func scanEvent(rows *sql.Rows, ranked bool) (entities.EventSearchResult, error) {
	var (
		r                                   entities.EventSearchResult
		description, city, country, website sql.NullString
		style, imageURL, extractionMethod   sql.NullString
		qualityScore, completenessScore     sql.NullFloat64
		rank                                sql.NullFloat64
	)

	dest := []interface{}{
		&r.ID,
		&r.Name,
		&description,
		&r.FromDate,
		&r.ToDate,
		&city,
		&country,
		&website,
		&style,
		&imageURL,
		&qualityScore,
		&completenessScore,
		&extractionMethod,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
	if ranked {
		dest = append(dest, &rank)
	}
	if err := rows.Scan(dest...); err != nil {
		return r, err
	}

	r.Description = nullString(description)
	r.City = nullString(city)
	r.Country = nullString(country)
	r.Website = nullString(website)
	r.Style = nullString(style)
	r.ImageURL = nullString(imageURL)
	r.ExtractionMethod = nullString(extractionMethod)
	r.QualityScore = nullFloat(qualityScore)
	r.CompletenessScore = nullFloat(completenessScore)
	if rank.Valid {
		r.SearchRank = rank.Float64
	}
	return r, nil
}

func newPage(total int64, rows []entities.EventSearchResult) *search.Page {
	for i := range rows {
		rows[i].TotalCount = total
	}
	return &search.Page{Total: total, Rows: rows}
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
