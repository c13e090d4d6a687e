package database

import (
	"database/sql"
	"fmt"
	"streamline/models"
	"time"
)

// RunStore records proxy run history. It satisfies core.RunRecorder.
type RunStore struct{}

func (RunStore) RunStarted(id string, port, patternCount int, startedAt time.Time) error {
	return CreateProxyRun(models.ProxyRun{
		ID:           id,
		Port:         port,
		PatternCount: patternCount,
		StartedAt:    startedAt,
		State:        models.ProxyRunStateRunning,
	})
}

func (RunStore) RunEnded(id string, endedAt time.Time, runErr error) error {
	state := models.ProxyRunStateStopped
	msg := ""
	if runErr != nil {
		state = models.ProxyRunStateFaulted
		msg = runErr.Error()
	}
	return FinishProxyRun(id, endedAt, state, msg)
}

func CreateProxyRun(run models.ProxyRun) error {
	_, err := DB.Exec(`INSERT INTO proxy_runs (id, port, pattern_count, started_at, state)
		VALUES (?, ?, ?, ?, ?)`, run.ID, run.Port, run.PatternCount, run.StartedAt.UTC(), run.State)
	if err != nil {
		return fmt.Errorf("recording proxy run %s: %w", run.ID, err)
	}
	return nil
}

func FinishProxyRun(id string, endedAt time.Time, state, errMsg string) error {
	_, err := DB.Exec(`UPDATE proxy_runs SET ended_at = ?, state = ?, error = ? WHERE id = ?`,
		endedAt.UTC(), state, nullString(errMsg), id)
	if err != nil {
		return fmt.Errorf("finishing proxy run %s: %w", id, err)
	}
	return nil
}

// GetRecentProxyRuns returns up to limit runs, newest first.
func GetRecentProxyRuns(limit int) ([]models.ProxyRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := DB.Query(`SELECT id, port, pattern_count, started_at, ended_at, state, error
		FROM proxy_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying proxy runs: %w", err)
	}
	defer rows.Close()

	runs := []models.ProxyRun{}
	for rows.Next() {
		var run models.ProxyRun
		var endedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.Port, &run.PatternCount, &run.StartedAt, &endedAt, &run.State, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning proxy run row: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			run.EndedAt = &t
		}
		run.Error = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkAbandonedRuns closes out runs left in the running state by a previous process.
func MarkAbandonedRuns() (int64, error) {
	res, err := DB.Exec(`UPDATE proxy_runs SET state = ?, ended_at = COALESCE(ended_at, ?), error = COALESCE(error, 'process exited while running')
		WHERE state = ?`, models.ProxyRunStateFaulted, time.Now().UTC(), models.ProxyRunStateRunning)
	if err != nil {
		return 0, fmt.Errorf("marking abandoned proxy runs: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
