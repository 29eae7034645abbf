package entity

import (
	"time"
)

// JobReport summarizes one maintenance job run.
type JobReport struct {
	Job       string         `json:"job"`
	StartedAt time.Time      `json:"started_at"`
	Duration  string         `json:"duration"`
	Scanned   int            `json:"scanned"`
	Changed   int            `json:"changed"`
	Actions   map[string]int `json:"actions,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
	Steps     []JobReport    `json:"steps,omitempty"`
}

func NewJobReport(job string) *JobReport {
	return &JobReport{
		Job:       job,
		StartedAt: time.Now().UTC(),
		Actions:   make(map[string]int),
	}
}

func (r *JobReport) Count(action string) {
	r.Actions[action]++
	r.Changed++
}

func (r *JobReport) Fail(err error) {
	r.Errors = append(r.Errors, err.Error())
}

func (r *JobReport) Finish() *JobReport {
	r.Duration = time.Since(r.StartedAt).Round(time.Millisecond).String()
	return r
}
