package models

import "fmt"

// Alternative is one machine an operation may run on, with its processing time
type Alternative struct {
	Machine  int `json:"machine"`
	Duration int `json:"duration"`
}

// Operation is a single processing step of a job.
// Machine, Start, End and SetupTime are only meaningful once Scheduled is set.
type Operation struct {
	Job          int           `json:"job"`
	Index        int           `json:"operation"`
	Key          int           `json:"key"` // position in Environment.Operations()
	Alternatives []Alternative `json:"alternatives"`

	Scheduled bool `json:"scheduled"`
	Machine   int  `json:"machine"`
	Start     int  `json:"start"`
	End       int  `json:"end"`
	SetupTime int  `json:"setup_time"`
}

// Duration returns the processing time on machine m, or false if m is not eligible
func (o *Operation) Duration(m int) (int, bool) {
	for _, alt := range o.Alternatives {
		if alt.Machine == m {
			return alt.Duration, true
		}
	}
	return 0, false
}

// MaxDuration returns the longest processing time over all eligible machines
func (o *Operation) MaxDuration() int {
	longest := 0
	for _, alt := range o.Alternatives {
		if alt.Duration > longest {
			longest = alt.Duration
		}
	}
	return longest
}

// String renders the operation as J<job>.O<op>
func (o *Operation) String() string {
	return fmt.Sprintf("J%d.O%d", o.Job, o.Index)
}

func (o *Operation) reset() {
	o.Scheduled = false
	o.Machine = -1
	o.Start = 0
	o.End = 0
	o.SetupTime = 0
}

// Job is an ordered chain of operations
type Job struct {
	ID         int          `json:"id"`
	Operations []*Operation `json:"operations"`
}
