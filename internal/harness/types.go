package harness

// TraceEvent is one invocation or completion in a scenario trace.
type TraceEvent struct {
	Type   string         `json:"type"` // "invocation" or "completion"
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
	Case   string         `json:"case,omitempty"`
	Result any            `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Seq    int64          `json:"seq"`
}

// Completion cases.
const (
	CaseOK    = "ok"
	CaseError = "error"
)

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every invocation and completion in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addInvocation(action string, args map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{Type: "invocation", Action: action, Args: args, Seq: seq})
}

func (r *Result) addCompletion(action, outcome string, result any, errMsg string, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   "completion",
		Action: action,
		Case:   outcome,
		Result: result,
		Error:  errMsg,
		Seq:    seq,
	})
}
