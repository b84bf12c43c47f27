package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job in a transport-friendly format.
type Job struct {
	ID              string      `json:"id"`
	SourceRef       string      `json:"sourceRef"`
	Status          string      `json:"status"`
	ErrorMessage    string      `json:"errorMessage,omitempty"`
	FailedStep      int         `json:"failedStep,omitempty"`
	NextStep        int         `json:"nextStep"`
	DurationSeconds float64     `json:"durationSeconds,omitempty"`
	Chunks          int         `json:"chunks"`
	Transcript      *string     `json:"transcript,omitempty"`
	Summary         *string     `json:"summary,omitempty"`
	Article         *string     `json:"article,omitempty"`
	Timestamps      []Timestamp `json:"timestamps,omitempty"`
	Run             int64       `json:"run"`
	Deleted         bool        `json:"deleted,omitempty"`
	CreatedAt       string      `json:"createdAt,omitempty"`
	UpdatedAt       string      `json:"updatedAt,omitempty"`
}

// Timestamp is one transcript offset.
type Timestamp struct {
	OffsetSeconds float64 `json:"offsetSeconds"`
	Text          string  `json:"text"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// SourceRequest is the body of create and start requests.
type SourceRequest struct {
	SourceRef string `json:"sourceRef"`
}

// RetryRequest is the body of a retry request.
type RetryRequest struct {
	Step int `json:"step"`
}

// ErrorResponse is returned for every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckResult mirrors a preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	ActiveRuns   int                `json:"activeRuns"`
	JobCounts    map[string]int     `json:"jobCounts"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Checks       []CheckResult      `json:"checks"`
}
