// Copyright 2026 SmartBin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/smartbin/BinWorker/model"
)

// MemoryPath opens an in-memory database.
const MemoryPath = ":memory:"

type detectionRecord struct {
	bun.BaseModel `bun:"table:detections"`
	ID            int64     `bun:"id,pk,autoincrement"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	Count         int       `bun:"count"`
	Destination   string    `bun:"destination"`
	Confidence    float64   `bun:"confidence"`
	Objects       string    `bun:"objects"`
}

type binLevelRecord struct {
	bun.BaseModel `bun:"table:bin_levels"`
	ID            int64     `bun:"id,pk,autoincrement"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	Bin           string    `bun:"bin,notnull"`
	Level         float64   `bun:"level"`
}

type eventRecord struct {
	bun.BaseModel `bun:"table:events"`
	ID            int64     `bun:"id,pk,autoincrement"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	Kind          string    `bun:"kind,notnull"`
	Message       string    `bun:"message"`
}

// Event is a recorded system event.
type Event struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

// Store keeps the history of detections, bin levels & events in SQLite.
type Store struct {
	log zerolog.Logger
	db  *bun.DB
	now func() time.Time
}

// Open the database at the given path, creating the schema when needed.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	dsn := path
	if path != MemoryPath && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open history database '%s'", path)
	}
	// SQLite handles a single writer; an in-memory database lives in a
	// single connection.
	sqlDB.SetMaxOpenConns(1)
	s := &Store{
		log: log.With().Str("component", "history").Logger(),
		db:  bun.NewDB(sqlDB, sqlitedialect.New()),
		now: time.Now,
	}
	if err := s.createSchema(ctx); err != nil {
		s.db.Close()
		return nil, err
	}
	s.log.Debug().Str("path", path).Msg("History database opened")
	return s, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	models := []interface{}{
		(*detectionRecord)(nil),
		(*binLevelRecord)(nil),
		(*eventRecord)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to create history table")
		}
	}
	indexes := []struct {
		Model interface{}
		Name  string
	}{
		{(*detectionRecord)(nil), "detections_created_at_idx"},
		{(*binLevelRecord)(nil), "bin_levels_created_at_idx"},
		{(*eventRecord)(nil), "events_created_at_idx"},
	}
	for _, idx := range indexes {
		if _, err := s.db.NewCreateIndex().Model(idx.Model).Index(idx.Name).Column("created_at").IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to create history index")
		}
	}
	return nil
}

// Close the database.
func (s *Store) Close() error {
	return errors.WithStack(s.db.Close())
}

// RecordDetection stores the given summary.
func (s *Store) RecordDetection(ctx context.Context, summary model.Summary) error {
	objects := summary.Objects
	if objects == nil {
		objects = []model.DetectedObject{}
	}
	encoded, err := json.Marshal(objects)
	if err != nil {
		return errors.WithStack(err)
	}
	ts := summary.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	rec := &detectionRecord{
		CreatedAt:   ts.UTC(),
		Count:       summary.Count,
		Destination: summary.Destination.String(),
		Confidence:  summary.Confidence,
		Objects:     string(encoded),
	}
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to record detection")
	}
	return nil
}

// RecordBinLevels stores the given levels.
func (s *Store) RecordBinLevels(ctx context.Context, levels model.BinLevels) error {
	if len(levels) == 0 {
		return nil
	}
	ts := s.now().UTC()
	recs := make([]binLevelRecord, 0, len(levels))
	for _, b := range model.AllBins {
		if level, found := levels[b]; found {
			recs = append(recs, binLevelRecord{CreatedAt: ts, Bin: b.String(), Level: level})
		}
	}
	if len(recs) == 0 {
		return nil
	}
	if _, err := s.db.NewInsert().Model(&recs).Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to record bin levels")
	}
	return nil
}

// RecordEvent stores a system event.
func (s *Store) RecordEvent(ctx context.Context, kind, message string) error {
	rec := &eventRecord{
		CreatedAt: s.now().UTC(),
		Kind:      kind,
		Message:   message,
	}
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to record event")
	}
	return nil
}

// RecentDetections returns the last limit detections, newest first.
func (s *Store) RecentDetections(ctx context.Context, limit int) ([]model.Summary, error) {
	var recs []detectionRecord
	if err := s.db.NewSelect().Model(&recs).OrderExpr("id DESC").Limit(limit).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to query detections")
	}
	result := make([]model.Summary, 0, len(recs))
	for _, r := range recs {
		var objects []model.DetectedObject
		if err := json.Unmarshal([]byte(r.Objects), &objects); err != nil {
			s.log.Warn().Err(err).Int64("id", r.ID).Msg("Invalid objects in detection record")
		}
		if objects == nil {
			objects = []model.DetectedObject{}
		}
		result = append(result, model.Summary{
			Count:       r.Count,
			Objects:     objects,
			Destination: model.Bin(r.Destination),
			Confidence:  r.Confidence,
			Timestamp:   r.CreatedAt,
		})
	}
	return result, nil
}

// LatestBinLevels returns the last recorded level of every bin and the
// time of the most recent record.
func (s *Store) LatestBinLevels(ctx context.Context) (model.BinLevels, time.Time, error) {
	var recs []binLevelRecord
	if err := s.db.NewSelect().Model(&recs).
		Where("id IN (SELECT MAX(id) FROM bin_levels GROUP BY bin)").
		Scan(ctx); err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to query bin levels")
	}
	levels := make(model.BinLevels, len(recs))
	var latest time.Time
	for _, r := range recs {
		levels[model.Bin(r.Bin)] = r.Level
		if r.CreatedAt.After(latest) {
			latest = r.CreatedAt
		}
	}
	return levels, latest, nil
}

// RecentEvents returns the last limit events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	var recs []eventRecord
	if err := s.db.NewSelect().Model(&recs).OrderExpr("id DESC").Limit(limit).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to query events")
	}
	result := make([]Event, 0, len(recs))
	for _, r := range recs {
		result = append(result, Event{Time: r.CreatedAt, Kind: r.Kind, Message: r.Message})
	}
	return result, nil
}

// Prune removes all records created before the given time.
// It returns the number of removed records.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	cutoff := olderThan.UTC()
	var total int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, m := range []interface{}{
			(*detectionRecord)(nil),
			(*binLevelRecord)(nil),
			(*eventRecord)(nil),
		} {
			res, err := tx.NewDelete().Model(m).Where("created_at < ?", cutoff).Exec(ctx)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil {
				total += n
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune history")
	}
	return total, nil
}

// RunPruner removes records older than the given retention every interval
// until the context is canceled.
func (s *Store) RunPruner(ctx context.Context, retention, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := s.Prune(ctx, s.now().Add(-retention))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error().Err(err).Msg("Pruning history failed")
		} else if n > 0 {
			s.log.Info().Int64("records", n).Msg("Pruned history")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
