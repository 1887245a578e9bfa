package nomination

type AlertKind string

const (
	AlertMaxReached          AlertKind = "max_reached"
	AlertEmptySubmission     AlertKind = "empty_submission"
	AlertSubmissionSucceeded AlertKind = "submission_succeeded"
	AlertSubmissionFailed    AlertKind = "submission_failed"
)

func (k AlertKind) Valid() bool {
	switch k {
	case AlertMaxReached, AlertEmptySubmission, AlertSubmissionSucceeded, AlertSubmissionFailed:
		return true
	}
	return false
}

// Alert is one show-event. Repeated triggers produce repeated events.
type Alert struct {
	Kind AlertKind
	Seq  uint64
}

// alertQueue keeps visibility per kind and an event log that is never
// coalesced, so a trigger while already shown still notifies.
type alertQueue struct {
	seq     uint64
	visible map[AlertKind]bool
	pending []Alert
}

func newAlertQueue() *alertQueue {
	return &alertQueue{visible: make(map[AlertKind]bool)}
}

func (q *alertQueue) pulse(kind AlertKind) {
	q.seq++
	q.visible[kind] = true
	q.pending = append(q.pending, Alert{Kind: kind, Seq: q.seq})
}

func (q *alertQueue) dismiss(kind AlertKind) {
	delete(q.visible, kind)
}

func (q *alertQueue) drain() []Alert {
	out := q.pending
	q.pending = nil
	return out
}

func (q *alertQueue) shown() []AlertKind {
	var out []AlertKind
	for _, k := range []AlertKind{AlertMaxReached, AlertEmptySubmission, AlertSubmissionSucceeded, AlertSubmissionFailed} {
		if q.visible[k] {
			out = append(out, k)
		}
	}
	return out
}
