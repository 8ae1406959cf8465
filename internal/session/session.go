package session

import (
	"sync"
	"time"

	"blindrelay/pkg/types"
)

// JudgeLabel is the designation respondents see on relayed judge messages.
// The asymmetry is intrinsic to the test: respondents know they talk to the
// judge, the judge must not learn which respondent is which.
const JudgeLabel = "Judge"

// respondentLabels are handed out to respondent seats in order of first
// occupancy and never change for the life of the session.
var respondentLabels = [2]string{"Participant A", "Participant B"}

// seat is one role slot. A nil seat means never joined; a seat with
// connected=false is vacated but remembers its occupant, so the same user
// rejoins and a different user may claim it. The label sticks to the seat,
// not the occupant. owner is the handle recorded by the most recent join;
// vacation requires the same owner, so a stale disconnect from a superseded
// handle cannot vacate a seat a newer join holds.
type seat struct {
	userID    string
	label     string
	owner     any
	joinedAt  time.Time
	connected bool
}

// Session is the live state of one test: role assignments, lifecycle state,
// and the blind-relay routing decision. All mutations and routing reads are
// serialized on a single mutex so concurrent joins, leaves, and messages
// observe one consistent ordering.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time
	state     string

	judge *seat
	human *seat
	ai    *seat

	// admissionFired latches after the first admission signal so human
	// reconnects and seat replacement never re-trigger it.
	admissionFired bool
	nextLabel      int
}

// JoinResult reports what a successful AddParticipant did.
type JoinResult struct {
	// Rejoin is true when the user already held the seat.
	Rejoin bool
	// TriggerAdmission is true exactly once per session: the human seat was
	// filled while the ai seat was still empty.
	TriggerAdmission bool
	// Activated is true when this join moved the session to active.
	Activated bool
}

// New creates a session. judgeID may be empty for lazy creation after a
// restart; when set, the judge seat is reserved for that user up front.
func New(id, judgeID string) *Session {
	s := &Session{
		id:        id,
		createdAt: time.Now(),
		state:     types.StatusWaiting,
	}
	if judgeID != "" {
		s.judge = &seat{userID: judgeID, label: JudgeLabel, joinedAt: s.createdAt}
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AddParticipant assigns or re-validates a seat for userID. owner is the
// handle claiming the seat (nil for seats taken over REST before a
// transport connects); each successful join records it on the seat.
//
// Judge: the seat is fixed at creation; a different user is rejected even
// after a vacancy. Respondents: a vacated seat accepts a different user as a
// new occupant, a connected seat rejects one. Re-joining one's own seat is
// an idempotent reconnect.
func (s *Session) AddParticipant(role types.Role, userID string, owner any) (JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res JoinResult

	if s.state == types.StatusCompleted {
		return res, ErrSessionCompleted
	}

	slot := s.seatFor(role)
	if slot == nil {
		return res, types.ErrInvalidRole
	}

	switch {
	case *slot == nil:
		*slot = &seat{
			userID:    userID,
			label:     s.labelFor(role),
			owner:     owner,
			joinedAt:  time.Now(),
			connected: true,
		}
	case (*slot).userID == userID:
		res.Rejoin = (*slot).connected
		(*slot).owner = owner
		(*slot).connected = true
	case role == types.RoleJudge || (*slot).connected:
		return res, ErrRoleConflict
	default:
		// Vacated respondent seat claimed by a new occupant. The seat keeps
		// its label so the judge cannot correlate occupant changes.
		(*slot).userID = userID
		(*slot).owner = owner
		(*slot).joinedAt = time.Now()
		(*slot).connected = true
	}

	if role == types.RoleHuman && s.ai == nil && !s.admissionFired {
		s.admissionFired = true
		res.TriggerAdmission = true
	}

	if s.state == types.StatusWaiting && s.judge != nil && s.human != nil && s.ai != nil {
		s.state = types.StatusActive
		res.Activated = true
	}

	return res, nil
}

// RemoveParticipant vacates the seat held by userID and reports which role
// it was. The seat is vacated only when owner matches the handle recorded by
// the most recent join; a mismatch means a newer join already owns the seat
// and the call is a no-op. The seat remembers its occupant; the session
// state is unchanged.
func (s *Session) RemoveParticipant(userID string, owner any) (types.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range []struct {
		role types.Role
		st   *seat
	}{
		{types.RoleJudge, s.judge},
		{types.RoleHuman, s.human},
		{types.RoleAI, s.ai},
	} {
		if entry.st != nil && entry.st.userID == userID {
			if entry.st.owner != owner {
				return "", false
			}
			entry.st.connected = false
			return entry.role, true
		}
	}
	return "", false
}

// Expire forces the terminal state. Safe to call concurrently with any other
// operation and idempotent; subsequent assignment and routing calls fail
// with ErrSessionCompleted.
func (s *Session) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = types.StatusCompleted
}

// Delivery is one recipient of a routed message.
type Delivery struct {
	UserID string
	Msg    types.ChatOut
}

// Decision is the computed recipient set for one inbound message. Ephemeral:
// recomputed per message, never persisted.
type Decision struct {
	Deliveries []Delivery
}

// RouteMessage computes the blind-relay decision for an inbound message.
// Judge messages fan out to both respondents under the judge label;
// respondent messages go only to the judge under the seat's stable anonymous
// label. Respondents never receive each other's messages. Recipients whose
// seat is vacated are dropped, not queued.
func (s *Session) RouteMessage(senderID, content string) (*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == types.StatusCompleted {
		return nil, ErrSessionCompleted
	}

	role, sender := s.roleOf(senderID)
	if sender == nil || !sender.connected {
		return nil, ErrUnknownSender
	}

	now := time.Now()
	decision := &Decision{}

	add := func(target *seat, label string) {
		if target == nil || !target.connected {
			return
		}
		decision.Deliveries = append(decision.Deliveries, Delivery{
			UserID: target.userID,
			Msg: types.ChatOut{
				Type:      "chat",
				From:      label,
				Content:   content,
				Timestamp: now,
			},
		})
	}

	switch role {
	case types.RoleJudge:
		add(s.human, JudgeLabel)
		add(s.ai, JudgeLabel)
	case types.RoleHuman, types.RoleAI:
		add(s.judge, sender.label)
	}

	return decision, nil
}

// Snapshot builds the session_state message sent to a participant on
// connect.
func (s *Session) Snapshot(yourRole types.Role) types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.Snapshot{
		Type:         "session_state",
		SessionID:    s.id,
		State:        s.state,
		YourRole:     yourRole,
		Participants: s.seatsLocked(),
	}
}

// Seats returns the current seat assignments.
func (s *Session) Seats() types.SeatAssignments {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seatsLocked()
}

// UserIDs returns the occupant of every seat that was ever filled,
// regardless of connection state.
func (s *Session) UserIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, st := range []*seat{s.judge, s.human, s.ai} {
		if st != nil {
			ids = append(ids, st.userID)
		}
	}
	return ids
}

func (s *Session) seatsLocked() types.SeatAssignments {
	var a types.SeatAssignments
	if s.judge != nil {
		a.Judge = s.judge.userID
	}
	if s.human != nil {
		a.Human = s.human.userID
	}
	if s.ai != nil {
		a.AI = s.ai.userID
	}
	return a
}

// seatFor returns a pointer to the seat slot for a role, nil for an unknown
// role.
func (s *Session) seatFor(role types.Role) **seat {
	switch role {
	case types.RoleJudge:
		return &s.judge
	case types.RoleHuman:
		return &s.human
	case types.RoleAI:
		return &s.ai
	default:
		return nil
	}
}

func (s *Session) roleOf(userID string) (types.Role, *seat) {
	switch {
	case s.judge != nil && s.judge.userID == userID:
		return types.RoleJudge, s.judge
	case s.human != nil && s.human.userID == userID:
		return types.RoleHuman, s.human
	case s.ai != nil && s.ai.userID == userID:
		return types.RoleAI, s.ai
	default:
		return "", nil
	}
}

// labelFor picks the label recorded on a newly created seat.
func (s *Session) labelFor(role types.Role) string {
	if role == types.RoleJudge {
		return JudgeLabel
	}
	label := respondentLabels[s.nextLabel%len(respondentLabels)]
	s.nextLabel++
	return label
}
