package storage

import (
	"context"
	"fmt"
	"time"
)

// TrainingStats holds aggregate statistics about a user's logged training.
type TrainingStats struct {
	TotalRoutines     int64        `json:"total_routines"`
	TotalSessions     int64        `json:"total_sessions"`
	CompletedSessions int64        `json:"completed_sessions"`
	TotalSets         int64        `json:"total_sets"`
	TotalVolume       float64      `json:"total_volume"`
	FirstSession      *time.Time   `json:"first_session"`
	LastSession       *time.Time   `json:"last_session"`
	SetsByMuscle      []MuscleStat `json:"sets_by_muscle"`
}

// MuscleStat summarizes recorded sets for a single muscle group.
type MuscleStat struct {
	Muscle string  `json:"muscle"`
	Sets   int64   `json:"sets"`
	Volume float64 `json:"volume"`
}

// GetTrainingStats returns aggregate statistics for a user's sessions.
func (db *DB) GetTrainingStats(ctx context.Context, userID int) (*TrainingStats, error) {
	stats := &TrainingStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM routines WHERE user_id = $1 AND is_active`, userID,
	).Scan(&stats.TotalRoutines)
	if err != nil {
		return nil, fmt.Errorf("counting routines: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'completed'),
		 COALESCE(SUM(total_volume), 0), MIN(started_at), MAX(started_at)
		 FROM workout_sessions WHERE user_id = $1`, userID,
	).Scan(&stats.TotalSessions, &stats.CompletedSessions, &stats.TotalVolume,
		&stats.FirstSession, &stats.LastSession)
	if err != nil {
		return nil, fmt.Errorf("summarizing sessions: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT e.muscle, COUNT(*), COALESCE(SUM(ws.volume), 0)
		 FROM workout_sets ws
		 JOIN workout_sessions s ON s.id = ws.session_id
		 JOIN exercises e ON e.id = ws.exercise_id
		 WHERE s.user_id = $1
		 GROUP BY e.muscle
		 ORDER BY COUNT(*) DESC, e.muscle ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sets by muscle: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s MuscleStat
		if err := rows.Scan(&s.Muscle, &s.Sets, &s.Volume); err != nil {
			return nil, fmt.Errorf("scanning muscle stat: %w", err)
		}
		stats.TotalSets += s.Sets
		stats.SetsByMuscle = append(stats.SetsByMuscle, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
