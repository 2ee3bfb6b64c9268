package model

import "time"

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusError      ProcessingStatus = "error"
)

type Phase string

const (
	PhaseActive Phase = "active"
	PhaseFailed Phase = "failed"
	PhaseDone   Phase = "done"
)

type Document struct {
	ID                 uint             `json:"id"`
	Filename           string           `json:"filename"`
	ContentType        string           `json:"content_type"`
	Size               int64            `json:"size"`
	CreatedAt          time.Time        `json:"created_at"`
	Processed          bool             `json:"processed"`
	ProcessingStatus   ProcessingStatus `json:"processing_status,omitempty"`
	ProcessingProgress *int             `json:"processing_progress,omitempty"`
	OwnerID            uint             `json:"owner_id,omitempty"`
}

// Phase reports which of the three lifecycle phases the document is in.
// Processed wins over an error status.
func (d Document) Phase() Phase {
	return d.Status().Phase()
}

func (d Document) Status() JobStatus {
	return JobStatus{
		Processed:          d.Processed,
		ProcessingStatus:   d.ProcessingStatus,
		ProcessingProgress: d.ProcessingProgress,
	}
}

// ApplyStatus merges a fetched status into the document. A document that is
// already done or failed keeps its values. It reports whether anything changed.
func (d *Document) ApplyStatus(st JobStatus) bool {
	if d.Phase() != PhaseActive {
		return false
	}
	before := d.Status()
	d.Processed = st.Processed
	d.ProcessingStatus = st.ProcessingStatus
	if st.Processed {
		d.ProcessingProgress = nil
	} else {
		d.ProcessingProgress = copyInt(st.ProcessingProgress)
	}
	return !before.Equal(d.Status())
}

// JobStatus is the payload of GET /documents/{id}/status.
type JobStatus struct {
	Processed          bool             `json:"processed"`
	ProcessingStatus   ProcessingStatus `json:"processing_status,omitempty"`
	ProcessingProgress *int             `json:"processing_progress,omitempty"`
}

func (s JobStatus) Terminal() bool {
	return s.Processed || s.ProcessingStatus == StatusError
}

func (s JobStatus) Phase() Phase {
	switch {
	case s.Processed:
		return PhaseDone
	case s.ProcessingStatus == StatusError:
		return PhaseFailed
	default:
		return PhaseActive
	}
}

// Progress returns the reported percentage, or 100 once processed.
func (s JobStatus) Progress() int {
	if s.Processed {
		return 100
	}
	if s.ProcessingProgress == nil {
		return 0
	}
	return *s.ProcessingProgress
}

func (s JobStatus) Equal(other JobStatus) bool {
	if s.Processed != other.Processed || s.ProcessingStatus != other.ProcessingStatus {
		return false
	}
	if s.ProcessingProgress == nil || other.ProcessingProgress == nil {
		return s.ProcessingProgress == nil && other.ProcessingProgress == nil
	}
	return *s.ProcessingProgress == *other.ProcessingProgress
}

// ProcessingJob is a document being tracked by the status poller.
type ProcessingJob struct {
	DocumentID uint      `json:"document_id"`
	Status     JobStatus `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StatusUpdate is emitted for every successful status fetch. Retired is set
// on the update that removed the job from the tracked set.
type StatusUpdate struct {
	DocumentID uint      `json:"document_id"`
	Status     JobStatus `json:"status"`
	Retired    bool      `json:"retired"`
}

func IntPtr(v int) *int {
	return &v
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
