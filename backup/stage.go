package backup

import "fmt"

// Stage is a step of a backup run
type Stage int

const (
	StageCollecting Stage = iota
	StageCompressing
	StageUploading
	StageRetention
	StageReporting
	StageDone
)

var stageNames = map[Stage]string{
	StageCollecting:  "collecting",
	StageCompressing: "compressing",
	StageUploading:   "uploading",
	StageRetention:   "retention-cleanup",
	StageReporting:   "reporting",
	StageDone:        "done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}

	return fmt.Sprintf("stage(%d)", int(s))
}

// transitions maps every stage to the one that follows it on success
var transitions = map[Stage]Stage{
	StageCollecting:  StageCompressing,
	StageCompressing: StageUploading,
	StageUploading:   StageRetention,
	StageRetention:   StageReporting,
	StageReporting:   StageDone,
}

// StageError attributes a failed run to the stage that failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("backup failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
