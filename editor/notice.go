package editor

import "time"

type NoticeKind string

const (
	// NoticeInit means the canvas could not start; editing is unavailable.
	NoticeInit NoticeKind = "init"
	// NoticeDocument means a saved document was rejected and the canvas
	// started blank.
	NoticeDocument NoticeKind = "document"
	// NoticePersistence means the latest changes are not saved.
	NoticePersistence NoticeKind = "persistence"
)

// Notice is a user-visible problem with the editing session.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
	At      time.Time
}

func (s *DesignStore) setNotice(kind NoticeKind, msg string, err error) {
	s.mu.Lock()
	s.notice = &Notice{Kind: kind, Message: msg, Err: err, At: time.Now()}
	s.mu.Unlock()
}

// Notice returns the current notice, or nil.
func (s *DesignStore) Notice() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return nil
	}
	n := *s.notice
	return &n
}

// DismissNotice clears the current notice.
func (s *DesignStore) DismissNotice() {
	s.mu.Lock()
	s.notice = nil
	s.mu.Unlock()
}
