package tracker

import (
	"errors"
	"time"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
)

var ErrItemNotEligible = errors.New("item is not eligible for tracking")

type Stage string

const (
	StageQuery    Stage = "query"
	StageFetch    Stage = "fetch"
	StageRecord   Stage = "record"
	StageSave     Stage = "save"
	StageDispatch Stage = "dispatch"
	StagePanic    Stage = "panic"
)

type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeErrored   Outcome = "errored"
)

// ItemResult is what one run of the per-item pipeline produced.
type ItemResult struct {
	ItemID  string
	Outcome Outcome
	Price   float64
	Source  string
	Alert   *alert.Alert
	Stage   Stage
	Err     error
}

type ItemError struct {
	ItemID string
	Stage  Stage
	Err    error
}

type CycleReport struct {
	StartedAt     time.Time
	Duration      time.Duration
	Total         int
	Successful    int
	Updated       int
	Unchanged     int
	Errored       int
	AlertsCreated int
	Batches       int
	Aborted       bool
	Errors        []ItemError
}

func (r *CycleReport) add(res ItemResult) {
	switch res.Outcome {
	case OutcomeUpdated:
		r.Successful++
		r.Updated++
	case OutcomeUnchanged:
		r.Successful++
		r.Unchanged++
	default:
		r.Errored++
	}
	if res.Alert != nil {
		r.AlertsCreated++
	}
	if res.Err != nil {
		r.Errors = append(r.Errors, ItemError{ItemID: res.ItemID, Stage: res.Stage, Err: res.Err})
	}
}
