// internal/game/sync_state.go
package game

import "github.com/jason-s-yu/crowdpick/internal/models"

// PublicOption is an answer choice as shown to players. Correct is only set
// once the round is resolved.
type PublicOption struct {
	Text    string `json:"text"`
	Muted   bool   `json:"muted"`
	Correct *bool  `json:"correct,omitempty"`
}

// PublicQuestion is the live question without its answer key.
type PublicQuestion struct {
	ID         string             `json:"id"`
	Text       string             `json:"text"`
	PanelID    string             `json:"panelId"`
	Layer      models.AnswerLayer `json:"layer"`
	LayerLabel string             `json:"layerLabel"`
	Points     int                `json:"points"`
	Options    []PublicOption     `json:"options"`
}

// PublicState is the client-facing view of a session.
type PublicState struct {
	SessionID string `json:"sessionId"`
	Mode      Mode   `json:"mode,omitempty"`
	Phase     Phase  `json:"phase"`

	CurrentRound int             `json:"currentRound"`
	TotalRounds  int             `json:"totalRounds"`
	Question     *PublicQuestion `json:"question,omitempty"`

	SelectedPanel *models.Panel      `json:"selectedPanel,omitempty"`
	SelectedLayer models.AnswerLayer `json:"selectedLayer"`

	SelectedOptionIndex *int         `json:"selectedOptionIndex"`
	ShowResults         bool         `json:"showResults"`
	LastResult          *RoundResult `json:"lastResult,omitempty"`

	Score       int  `json:"score"`
	Streak      int  `json:"streak"`
	RedScore    int  `json:"redScore"`
	BlueScore   int  `json:"blueScore"`
	CurrentTeam Team `json:"currentTeam,omitempty"`

	PowerCards       []models.PowerCard `json:"powerCards"`
	Hint             *StealHint         `json:"hint,omitempty"`
	DoubleBluffArmed bool               `json:"doubleBluffArmed"`
}

// PublicState generates a snapshot suitable for sending to clients.
func (s *Session) PublicState() PublicState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publicStateLocked()
}

// publicStateLocked assumes lock is held.
func (s *Session) publicStateLocked() PublicState {
	st := s.state.clone()
	pub := PublicState{
		SessionID:           s.ID.String(),
		Mode:                st.Mode,
		Phase:               st.Phase,
		CurrentRound:        st.CurrentRound,
		TotalRounds:         st.TotalRounds,
		SelectedPanel:       st.SelectedPanel,
		SelectedLayer:       st.SelectedLayer,
		SelectedOptionIndex: st.SelectedOptionIndex,
		ShowResults:         st.ShowResults,
		LastResult:          st.LastResult,
		Score:               st.Score,
		Streak:              st.Streak,
		RedScore:            st.RedScore,
		BlueScore:           st.BlueScore,
		PowerCards:          st.PowerCards,
		Hint:                st.Hint,
		DoubleBluffArmed:    st.DoubleBluffArmed,
	}
	if st.Mode == ModeParty {
		pub.CurrentTeam = st.CurrentTeam
	}

	if q := st.CurrentQuestion; q != nil {
		pq := &PublicQuestion{
			ID:         q.ID,
			Text:       q.Text,
			PanelID:    q.PanelID,
			Layer:      q.Layer,
			LayerLabel: q.Layer.Label(),
			Points:     q.Layer.BasePoints(),
			Options:    make([]PublicOption, len(q.Options)),
		}
		for i, o := range q.Options {
			po := PublicOption{Text: o.Text, Muted: st.IsMuted(i)}
			if st.ShowResults {
				correct := o.IsCorrect
				po.Correct = &correct
			}
			pq.Options[i] = po
		}
		pub.Question = pq
	}
	return pub
}
