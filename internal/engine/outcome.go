package engine

import "fmt"

type outcomeKind int

const (
	outcomeValue outcomeKind = iota
	outcomeSuspend
	outcomeFail
)

// Outcome is the result of executing one node: a value to merge into the
// context, a suspension awaiting external input, or a failure.
type Outcome struct {
	kind    outcomeKind
	value   Value
	token   string
	message string
}

// Complete returns an Outcome carrying the node's output value.
func Complete(v Value) Outcome {
	return Outcome{kind: outcomeValue, value: v}
}

// Suspend returns an Outcome that parks the run at the current node. The
// resume token identifies this particular suspension to external callers.
func Suspend(resumeToken string) Outcome {
	return Outcome{kind: outcomeSuspend, token: resumeToken}
}

// Fail returns a failure Outcome with a formatted message.
func Fail(format string, args ...any) Outcome {
	return Outcome{kind: outcomeFail, message: fmt.Sprintf(format, args...)}
}

func (o Outcome) Suspended() bool { return o.kind == outcomeSuspend }
func (o Outcome) Failed() bool    { return o.kind == outcomeFail }

// Value returns the output value of a completed node.
func (o Outcome) Value() Value { return o.value }

// ResumeToken returns the token of a suspended node.
func (o Outcome) ResumeToken() string { return o.token }

// Message returns the failure message.
func (o Outcome) Message() string { return o.message }
