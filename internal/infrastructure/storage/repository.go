package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/CaixiangyangCD/ksx/internal/domain"
)

// Upsert writes records into the target date's shard, skipping any whose raw
// identifier is already present. The returned count is freshly inserted rows
// only, so an unchanged portal day reports zero.
func (s *ShardedStore) Upsert(ctx context.Context, records []domain.Record, targetDate time.Time) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	key := domain.ShardKeyFor(targetDate)
	db, err := s.shard(key, true)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, rec := range records {
		rawID := rec.RawID()
		if rawID != "" {
			exists, err := rawIDExists(ctx, tx, rawID)
			if err != nil {
				return 0, err
			}
			if exists {
				continue
			}
		}
		if err := insertRecord(ctx, tx, rec, rawID); err != nil {
			return 0, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	s.logger.Info("records upserted",
		"day", key.Day,
		"received", len(records),
		"inserted", inserted)
	return inserted, nil
}

func rawIDExists(ctx context.Context, tx *sql.Tx, rawID string) (bool, error) {
	query, args, err := sq.Select("1").
		From("records").
		Where(sq.Eq{domain.FieldRawID: rawID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}
	var one int
	err = tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check raw id %s: %w", rawID, err)
	}
	return true, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec domain.Record, rawID string) error {
	builder := sq.Insert("records")
	cols := make([]string, 0, len(domain.Registry()))
	vals := make([]any, 0, len(domain.Registry()))
	for _, f := range domain.Registry() {
		cols = append(cols, f.Key)
		if f.Key == domain.FieldRawID {
			vals = append(vals, nullable(rawID))
			continue
		}
		vals = append(vals, columnValue(f, rec.Values[f.Key]))
	}
	query, args, err := builder.Columns(cols...).Values(vals...).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record %s: %w", rawID, err)
	}
	return nil
}

// columnValue coerces a portal value into the column's storage type. Numeric
// columns accept numbers or numeric strings; anything else degrades to NULL
// rather than poisoning the shard.
func columnValue(f domain.Field, v any) any {
	if v == nil {
		return nil
	}
	if f.Kind == domain.FieldReal {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case string:
			if n == "" {
				return nil
			}
			parsed, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil
			}
			return parsed
		default:
			return nil
		}
	}
	return nullable(fmt.Sprintf("%v", v))
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Query returns one shard's rows in insertion order, optionally filtered by
// store name substring. A missing shard is an empty result, not an error.
func (s *ShardedStore) Query(ctx context.Context, params domain.QueryParams) (domain.QueryResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	size := params.PageSize
	if size < 1 {
		size = 50
	}
	result := domain.QueryResult{Page: page, PageSize: size}

	db, err := s.shard(domain.ShardKeyFor(params.Date), false)
	if err != nil {
		return result, err
	}
	if db == nil {
		return result, nil
	}

	where := sq.And{}
	if params.NameFilter != "" {
		where = append(where, sq.Like{domain.FieldDisplayName: "%" + params.NameFilter + "%"})
	}

	countQuery, countArgs, err := sq.Select("COUNT(*)").From("records").Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count records: %w", err)
	}
	result.TotalPages = (result.Total + size - 1) / size

	query, args, err := sq.Select(quotedFieldKeys()...).
		From("records").
		Where(where).
		OrderBy("created_at", "id").
		Limit(uint64(size)).
		Offset(uint64((page - 1) * size)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build select query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	fields := domain.Registry()
	for rows.Next() {
		rec, err := scanRecord(rows, fields)
		if err != nil {
			return result, err
		}
		result.Rows = append(result.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate records: %w", err)
	}
	return result, nil
}

func quotedFieldKeys() []string {
	keys := domain.FieldKeys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%q", k)
	}
	return out
}

func scanRecord(rows *sql.Rows, fields []domain.Field) (domain.Record, error) {
	dest := make([]any, len(fields))
	for i, f := range fields {
		if f.Kind == domain.FieldReal {
			dest[i] = new(sql.NullFloat64)
		} else {
			dest[i] = new(sql.NullString)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return domain.Record{}, fmt.Errorf("scan record: %w", err)
	}

	values := make(map[string]any, len(fields))
	for i, f := range fields {
		switch v := dest[i].(type) {
		case *sql.NullFloat64:
			if v.Valid {
				values[f.Key] = v.Float64
			}
		case *sql.NullString:
			if v.Valid {
				values[f.Key] = v.String
			}
		}
	}
	return domain.Record{Values: values}, nil
}

// CountForDate reports how many rows the date's shard holds; zero when the
// shard does not exist.
func (s *ShardedStore) CountForDate(ctx context.Context, date time.Time) (int, error) {
	db, err := s.shard(domain.ShardKeyFor(date), false)
	if err != nil {
		return 0, err
	}
	if db == nil {
		return 0, nil
	}
	query, args, err := sq.Select("COUNT(*)").From("records").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count shard rows: %w", err)
	}
	return count, nil
}

// ListEntities returns every distinct store display name across all shards,
// sorted for stable output.
func (s *ShardedStore) ListEntities(ctx context.Context) ([]string, error) {
	months, err := s.listMonths()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, month := range months {
		keys, err := s.listShards(month)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := s.collectEntities(ctx, key, seen); err != nil {
				return nil, err
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// EntityWatermarks returns, per entity, the newest shard date holding one of
// its records. Shards are walked in ascending date order, so the last write
// per name wins.
func (s *ShardedStore) EntityWatermarks(ctx context.Context) (map[string]time.Time, error) {
	months, err := s.listMonths()
	if err != nil {
		return nil, err
	}
	marks := make(map[string]time.Time)
	for _, month := range months {
		keys, err := s.listShards(month)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			date, err := time.Parse("2006-01-02", key.Day)
			if err != nil {
				continue
			}
			seen := make(map[string]struct{})
			if err := s.collectEntities(ctx, key, seen); err != nil {
				return nil, err
			}
			for name := range seen {
				marks[name] = date
			}
		}
	}
	return marks, nil
}

func (s *ShardedStore) collectEntities(ctx context.Context, key domain.ShardKey, seen map[string]struct{}) error {
	db, err := s.shard(key, false)
	if err != nil || db == nil {
		return err
	}
	query, args, err := sq.Select(fmt.Sprintf("DISTINCT %q", domain.FieldDisplayName)).
		From("records").
		Where(sq.NotEq{domain.FieldDisplayName: nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build entities query: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query entities in %s: %w", key.Day, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan entity name: %w", err)
		}
		if name != "" {
			seen[name] = struct{}{}
		}
	}
	return rows.Err()
}
