package auth

import "github.com/roach88/roomlab/internal/ledger"

// State is the session state.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Session is the in-memory record of which account, if any, is signed in.
// It is owned by a Service and guarded by the Service's mutex.
type Session struct {
	account *ledger.Profile
}

// State reports whether an account is attached.
func (s *Session) State() State {
	if s.account == nil {
		return Anonymous
	}
	return Authenticated
}

// Account returns the attached profile.
func (s *Session) Account() (ledger.Profile, bool) {
	if s.account == nil {
		return ledger.Profile{}, false
	}
	return *s.account, true
}

func (s *Session) attach(p ledger.Profile) {
	s.account = &p
}

func (s *Session) clear() {
	s.account = nil
}
