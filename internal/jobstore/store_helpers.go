package jobstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mediabatch/internal/jobs"
	"mediabatch/internal/transcript"
)

// storedTimeLayout is fixed width so text comparison in SQL matches time order.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

const jobColumns = "id, status, source_ref, recursive, max_file_size_mb, output_dir, item_count, processed, succeeded, failed, skipped, outcomes_json, error_message, combined_path, log_path, created_at, started_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (jobs.Job, error) {
	var (
		id           string
		statusStr    string
		sourceRef    string
		recursive    int64
		maxFileSize  int64
		outputDir    sql.NullString
		itemCount    sql.NullInt64
		processed    int64
		succeeded    int64
		failed       int64
		skipped      int64
		outcomesRaw  sql.NullString
		errorMessage sql.NullString
		combinedPath sql.NullString
		logPath      sql.NullString
		createdRaw   string
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&statusStr,
		&sourceRef,
		&recursive,
		&maxFileSize,
		&outputDir,
		&itemCount,
		&processed,
		&succeeded,
		&failed,
		&skipped,
		&outcomesRaw,
		&errorMessage,
		&combinedPath,
		&logPath,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return jobs.Job{}, err
	}

	status, err := jobs.ParseStatus(statusStr)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("job %s: %w", id, err)
	}
	job := jobs.Job{
		ID:     id,
		Status: status,
		Source: jobs.SourceSpec{
			Ref:           sourceRef,
			Recursive:     recursive != 0,
			MaxFileSizeMB: int(maxFileSize),
			OutputDir:     outputDir.String,
		},
		Processed:    int(processed),
		Succeeded:    int(succeeded),
		Failed:       int(failed),
		Skipped:      int(skipped),
		Error:        errorMessage.String,
		CombinedPath: combinedPath.String,
		LogPath:      logPath.String,
	}
	if itemCount.Valid {
		count := int(itemCount.Int64)
		job.ItemCount = &count
	}
	if outcomesRaw.Valid && outcomesRaw.String != "" {
		var outcomes []transcript.Outcome
		if err := json.Unmarshal([]byte(outcomesRaw.String), &outcomes); err != nil {
			return jobs.Job{}, fmt.Errorf("job %s: decode outcomes: %w", id, err)
		}
		job.Outcomes = outcomes
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	job.StartedAt = parseNullableTime(startedRaw)
	job.FinishedAt = parseNullableTime(finishedRaw)
	return job, nil
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

func nullableCount(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(storedTimeLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
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

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}
