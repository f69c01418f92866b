package store

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/tempomap"
)

const schema = `
CREATE TABLE IF NOT EXISTS audio_files (
	id          BIGSERIAL PRIMARY KEY,
	path        TEXT NOT NULL,
	checksum    TEXT NOT NULL UNIQUE,
	duration    DOUBLE PRECISION NOT NULL,
	sample_rate INTEGER NOT NULL,
	channels    INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS analyses (
	id            BIGSERIAL PRIMARY KEY,
	audio_file_id BIGINT NOT NULL REFERENCES audio_files(id) ON DELETE CASCADE,
	algorithm     TEXT NOT NULL,
	status        TEXT NOT NULL,
	average_bpm   DOUBLE PRECISION NOT NULL,
	beat_count    INTEGER NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	processing_ms BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_bpm ON analyses (average_bpm);

CREATE TABLE IF NOT EXISTS beats (
	id            BIGSERIAL PRIMARY KEY,
	analysis_id   BIGINT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	time          DOUBLE PRECISION NOT NULL,
	position      INTEGER NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	tempo_at_beat DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_beats_analysis_time ON beats (analysis_id, time);
`

// Postgres implements Store on database/sql.
type Postgres struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewPostgres wraps db and bootstraps the schema.
func NewPostgres(db *sql.DB, log *zap.SugaredLogger) (*Postgres, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, &Error{Op: "init schema", Err: err}
	}
	return &Postgres{db: db, log: log}, nil
}

// Save implements Store. The audio file row is upserted by checksum, then
// the analysis and its beats land in the same transaction so concurrent
// readers never see a half-written pair.
func (p *Postgres) Save(ctx context.Context, f *audio.File, a *Analysis, beats []tempomap.Beat) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &Error{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	var fileID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO audio_files (path, checksum, duration, sample_rate, channels)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (checksum) DO UPDATE SET path = EXCLUDED.path
		RETURNING id`,
		f.Path, f.Checksum, f.Duration, f.SampleRate, f.Channels,
	).Scan(&fileID)
	if err != nil {
		return 0, &Error{Op: "upsert audio file", Err: err}
	}

	var analysisID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO analyses (audio_file_id, algorithm, status, average_bpm, beat_count, error, processing_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		fileID, a.Algorithm, string(a.Status), a.AverageBPM, len(beats), a.Error,
		a.Processing.Milliseconds(),
	).Scan(&analysisID)
	if err != nil {
		return 0, &Error{Op: "insert analysis", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO beats (analysis_id, time, position, confidence, tempo_at_beat)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return 0, &Error{Op: "prepare beats", Err: err}
	}
	defer stmt.Close()
	for _, b := range beats {
		if _, err := stmt.ExecContext(ctx, analysisID, b.Time, b.Position, b.Confidence, b.TempoAtBeat); err != nil {
			return 0, &Error{Op: "insert beat", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &Error{Op: "commit", Err: err}
	}
	p.log.Debugw("stored analysis", "id", analysisID, "path", f.Path, "beats", len(beats))
	return analysisID, nil
}

// QueryByBPM implements Store with a single JOIN statement; the audio file
// columns ride along with every analysis row.
func (p *Postgres) QueryByBPM(ctx context.Context, min, max float64) ([]Analysis, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT a.id, a.audio_file_id, a.algorithm, a.status, a.average_bpm,
		       a.beat_count, a.error, a.processing_ms, a.created_at,
		       f.path, f.checksum, f.duration, f.sample_rate, f.channels
		FROM analyses a
		JOIN audio_files f ON f.id = a.audio_file_id
		WHERE a.average_bpm >= $1 AND a.average_bpm <= $2
		ORDER BY a.average_bpm`,
		min, max)
	if err != nil {
		return nil, &Error{Op: "query bpm range", Err: err}
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var (
			a  Analysis
			f  audio.File
			st string
			ms int64
		)
		if err := rows.Scan(&a.ID, &a.AudioFileID, &a.Algorithm, &st, &a.AverageBPM,
			&a.BeatCount, &a.Error, &ms, &a.CreatedAt,
			&f.Path, &f.Checksum, &f.Duration, &f.SampleRate, &f.Channels); err != nil {
			return nil, &Error{Op: "scan analysis", Err: err}
		}
		a.Status = Status(st)
		a.Processing = time.Duration(ms) * time.Millisecond
		a.File = &f
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "query bpm range", Err: err}
	}
	return out, nil
}

// Stats implements Store.
func (p *Postgres) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{ByAlgorithm: make(map[string]AlgorithmStats)}

	err := p.db.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM audio_files),
		       (SELECT count(*) FROM analyses),
		       (SELECT count(*) FROM beats),
		       COALESCE((SELECT avg(average_bpm) FROM analyses), 0),
		       COALESCE((SELECT min(average_bpm) FROM analyses), 0),
		       COALESCE((SELECT max(average_bpm) FROM analyses), 0),
		       COALESCE((SELECT sum(duration) FROM audio_files), 0)`,
	).Scan(&s.TotalFiles, &s.TotalAnalyses, &s.TotalBeats,
		&s.AvgBPM, &s.MinBPM, &s.MaxBPM, &s.TotalDuration)
	if err != nil {
		return nil, &Error{Op: "stats", Err: err}
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT algorithm, count(*), avg(average_bpm)
		FROM analyses GROUP BY algorithm`)
	if err != nil {
		return nil, &Error{Op: "stats by algorithm", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name string
			as   AlgorithmStats
		)
		if err := rows.Scan(&name, &as.Count, &as.AvgBPM); err != nil {
			return nil, &Error{Op: "scan algorithm stats", Err: err}
		}
		s.ByAlgorithm[name] = as
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "stats by algorithm", Err: err}
	}
	return s, nil
}
