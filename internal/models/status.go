package models

import "strings"

// Stage identifies one unit of campaign work.
type Stage string

const (
	StageScrape   Stage = "Scraping"
	StageGenerate Stage = "Generating Emails"
	StageSend     Stage = "Sending Emails"
	StageAnalyze  Stage = "Analyzing Replies"
)

// Status is the campaign state machine's state. Idle is both the initial
// state and the terminal state after any successful stage; a failed stage
// leaves Failed set with the stage that raised.
type Status struct {
	Stage  Stage // in-progress stage, empty when idle or failed
	Failed Stage // stage that failed, empty otherwise
	Detail string
}

// StatusIdle is the zero-work state.
var StatusIdle = Status{}

// InProgress returns the status for a running stage.
func InProgress(stage Stage) Status {
	return Status{Stage: stage}
}

// Failed returns the failure status for a stage.
func Failed(stage Stage, detail string) Status {
	return Status{Failed: stage, Detail: detail}
}

// IsIdle reports whether no stage is running or failed.
func (s Status) IsIdle() bool {
	return s.Stage == "" && s.Failed == ""
}

// IsFailed reports whether the last stage raised.
func (s Status) IsFailed() bool {
	return s.Failed != ""
}

// String renders the status in its persisted form, e.g. "Idle",
// "Sending Emails" or "Failed: Scraping error".
func (s Status) String() string {
	switch {
	case s.Failed != "":
		return "Failed: " + string(s.Failed) + " error"
	case s.Stage != "":
		return string(s.Stage)
	default:
		return "Idle"
	}
}

// ParseStatus reads a persisted status string back into its variant form.
// Unrecognized strings are treated as Idle so a fresh or hand-edited row
// never wedges the state machine.
func ParseStatus(raw string) Status {
	switch raw {
	case "", "Idle":
		return StatusIdle
	case string(StageScrape), string(StageGenerate), string(StageSend), string(StageAnalyze):
		return InProgress(Stage(raw))
	}
	if rest, ok := strings.CutPrefix(raw, "Failed: "); ok {
		stage, _ := strings.CutSuffix(rest, " error")
		return Failed(Stage(stage), "")
	}
	return StatusIdle
}
