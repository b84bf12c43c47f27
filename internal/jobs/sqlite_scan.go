package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scribe/internal/audio"
)

const jobColumns = "id, source_ref, status, transcript, timestamps_json, summary, article, error_message, failed_step, duration_seconds, chunk_plan_json, run, created_at, updated_at, deleted_at"

// timeLayout is fixed width so TEXT ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id             string
		sourceRef      string
		statusStr      string
		transcript     sql.NullString
		timestampsJSON sql.NullString
		summary        sql.NullString
		article        sql.NullString
		errorMessage   sql.NullString
		failedStep     sql.NullInt64
		duration       sql.NullFloat64
		chunkPlanJSON  sql.NullString
		run            sql.NullInt64
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
		deletedRaw     sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&sourceRef,
		&statusStr,
		&transcript,
		&timestampsJSON,
		&summary,
		&article,
		&errorMessage,
		&failedStep,
		&duration,
		&chunkPlanJSON,
		&run,
		&createdRaw,
		&updatedRaw,
		&deletedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		SourceRef:       sourceRef,
		Status:          Status(statusStr),
		Transcript:      nullStringPtr(transcript),
		Summary:         nullStringPtr(summary),
		Article:         nullStringPtr(article),
		ErrorMessage:    errorMessage.String,
		FailedStep:      int(failedStep.Int64),
		DurationSeconds: duration.Float64,
		Run:             run.Int64,
	}
	if timestampsJSON.Valid && timestampsJSON.String != "" {
		var ts []Timestamp
		if err := json.Unmarshal([]byte(timestampsJSON.String), &ts); err != nil {
			return nil, fmt.Errorf("decode timestamps for job %s: %w", id, err)
		}
		job.Timestamps = ts
	}
	if chunkPlanJSON.Valid && chunkPlanJSON.String != "" {
		var plan []audio.Bounds
		if err := json.Unmarshal([]byte(chunkPlanJSON.String), &plan); err != nil {
			return nil, fmt.Errorf("decode chunk plan for job %s: %w", id, err)
		}
		job.ChunkPlan = plan
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if deletedRaw.Valid {
		if deleted, err := parseTimeString(deletedRaw.String); err == nil {
			job.DeletedAt = &deleted
		}
	}
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()
	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullableText(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func nullableJSON[T any](values []T) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
