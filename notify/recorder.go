package notify

import "sync"

// Recorder captures notices for assertions in tests.
type Recorder struct {
	notices []Notice
	lock    sync.Mutex
}

var _ Notifier = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(notice Notice) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *Recorder) Notices() []Notice {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}
