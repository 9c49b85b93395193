package model

import "time"

// Tier is a coarse qualification bucket derived from the final score.
type Tier string

const (
	TierImmediate   Tier = "IMMEDIATE"
	TierHigh        Tier = "HIGH"
	TierMedium      Tier = "MEDIUM"
	TierUnqualified Tier = "UNQUALIFIED"
)

// Qualification failure reasons.
const (
	ReasonBelowMinSpend = "below_min_spend"
	ReasonBelowScore    = "below_threshold"
)

// QualificationResult is the scorer's output for one prospect.
type QualificationResult struct {
	ICP             string             `json:"icp"`
	Score           float64            `json:"qualification_score"`
	Tier            Tier               `json:"tier"`
	Qualified       bool               `json:"qualified"`
	Reason          string             `json:"reason,omitempty"`
	Signals         map[string]float64 `json:"signals,omitempty"`
	SignalsDetected []string           `json:"signals_detected,omitempty"`
	Insights        []string           `json:"insights,omitempty"`
}

// Confidence qualifies a money-leak estimate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// LeakEstimate is the money-leak estimator's output. MonthlyLeak is never
// presented without Confidence.
type LeakEstimate struct {
	MonthlyLeak     float64    `json:"monthly_leak"`
	EfficiencyScore float64    `json:"efficiency_score"`
	Confidence      Confidence `json:"confidence"`
	Benchmark       string     `json:"benchmark"`
	ObservedCPM     float64    `json:"observed_cpm"`
	ObservedCTR     float64    `json:"observed_ctr"`
	ObservedCVR     float64    `json:"observed_cvr"`
}

// Stage is how far a record progressed through the batch.
type Stage string

const (
	StageFiltered  Stage = "filtered"
	StageDataError Stage = "data_error"
	StageScored    Stage = "scored"
)

// Outcome pairs a prospect with everything the batch computed for it.
type Outcome struct {
	Prospect Prospect             `json:"prospect"`
	Stage    Stage                `json:"stage"`
	Reason   string               `json:"reason,omitempty"`
	Result   *QualificationResult `json:"result,omitempty"`
	Leak     *LeakEstimate        `json:"leak,omitempty"`
}

// Qualified reports whether the outcome is a qualified lead.
func (o *Outcome) Qualified() bool {
	return o.Result != nil && o.Result.Qualified
}

// RunSummary counts batch outcomes so operators can tell "no good leads"
// from "something is broken".
type RunSummary struct {
	Total             int            `json:"total"`
	FilteredOut       int            `json:"filtered_out"`
	ScoredUnqualified int            `json:"scored_unqualified"`
	Qualified         int            `json:"qualified"`
	DataErrors        int            `json:"data_errors"`
	ConfigErrors      int            `json:"config_errors"`
	FilterReasons     map[string]int `json:"filter_reasons,omitempty"`
	Tiers             map[Tier]int   `json:"tiers,omitempty"`
}

// RunStatus is the lifecycle state of a persisted scoring run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted scoring run.
type Run struct {
	ID        string      `json:"id"`
	Profile   string      `json:"profile"`
	Input     string      `json:"input"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
