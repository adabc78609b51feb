package voice

import "time"

// Command is the most recent recognized utterance. It is overwritten, never accumulated.
type Command struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// State 控制器状态快照
type State struct {
	Phase       Phase    `json:"-"`
	PhaseName   string   `json:"phase"`
	Initialized bool     `json:"initialized"`
	LastCommand *Command `json:"last_command,omitempty"`
	LastReply   string   `json:"last_reply,omitempty"`
	ErrorCount  int      `json:"error_count"`
}

func (s State) clone() State {
	out := s
	out.PhaseName = s.Phase.String()
	if s.LastCommand != nil {
		cmd := *s.LastCommand
		out.LastCommand = &cmd
	}
	return out
}
