// internal/game/timer.go
package game

import "time"

// armRoundTimer schedules the timeout for the live round if RoundDuration > 0.
// Assumes lock is held.
func (s *Session) armRoundTimer() {
	if s.RoundDuration <= 0 {
		return
	}
	s.stopRoundTimer()

	token := s.roundToken
	deadline := time.Now().Add(s.RoundDuration)
	s.roundTimer = time.AfterFunc(s.RoundDuration, func() {
		s.expireRound(token)
	})
	s.fireEvent(SessionEvent{
		Type:  EventRoundTimer,
		Round: s.state.CurrentRound,
		Team:  s.teamForEvent(),
		Payload: map[string]interface{}{
			"seconds":  int(s.RoundDuration / time.Second),
			"deadline": deadline.UnixMilli(),
		},
	})
}

// stopRoundTimer cancels a pending timeout. A callback already in flight is
// rejected by the token check in expireRound.
// Assumes lock is held.
func (s *Session) stopRoundTimer() {
	if s.roundTimer != nil {
		s.roundTimer.Stop()
		s.roundTimer = nil
	}
}

// expireRound is the timer callback. It resolves the round as a timeout only if
// it is still the round the timer was armed for.
func (s *Session) expireRound(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.roundToken || s.state.Phase != PhaseUnanswered {
		s.log.Debugf("stale round timer fired (token %d, current %d, phase %s)", token, s.roundToken, s.state.Phase)
		return
	}
	s.log.Infof("round %d timed out", s.state.CurrentRound)
	s.roundTimer = nil
	s.resolveRound(NoAnswer)
}
