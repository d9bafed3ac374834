// internal/models/question.go
package models

// Option is a single answer choice.
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question is a prompt issued to a round. It is not modified once issued.
type Question struct {
	ID      string      `json:"id"`
	Text    string      `json:"text"`
	PanelID string      `json:"panelId"`
	Layer   AnswerLayer `json:"layer"`
	Options []Option    `json:"options"`
}

// CorrectIndex returns the index of the first correct option, or -1 if none is marked.
func (q *Question) CorrectIndex() int {
	for i, o := range q.Options {
		if o.IsCorrect {
			return i
		}
	}
	return -1
}

// CorrectAnswer returns the text of the correct option, or "" if none is marked.
func (q *Question) CorrectAnswer() string {
	if idx := q.CorrectIndex(); idx >= 0 {
		return q.Options[idx].Text
	}
	return ""
}

// Clone returns a deep copy so callers can't mutate the issued options.
func (q *Question) Clone() *Question {
	if q == nil {
		return nil
	}
	c := *q
	c.Options = make([]Option, len(q.Options))
	copy(c.Options, q.Options)
	return &c
}
