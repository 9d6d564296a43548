package questionnaire

import (
	"errors"
	"fmt"
)

var ErrUnknownOp = errors.New("unknown section operation")

// Section operation names.
const (
	OpTopic  = "topic"
	OpAdd    = "add"
	OpUpdate = "update"
	OpRemove = "remove"
	OpToggle = "toggle"
	OpSet    = "set"
)

// Op is one section operation as sent by a page or the live channel.
type Op struct {
	Op      string `json:"op"`
	Section string `json:"section"`
	Index   int    `json:"index,omitempty"`
	Field   string `json:"field,omitempty"`
	Value   any    `json:"value,omitempty"`
	Member  string `json:"member,omitempty"`
	Checked bool   `json:"checked,omitempty"`
}

// Do applies op to its section and returns the section as it now renders.
func (q *Questionnaire) Do(op Op) (SectionView, error) {
	c, err := q.Controller(op.Section)
	if err != nil {
		return SectionView{}, err
	}
	switch op.Op {
	case OpTopic:
		s, _ := op.Value.(string)
		c.SetTopicAnswer(s)
	case OpAdd:
		_, err = c.AddEntry()
	case OpUpdate:
		err = c.UpdateEntry(op.Index, op.Field, op.Value)
	case OpRemove:
		err = c.RemoveEntry(op.Index)
	case OpToggle:
		err = c.ToggleMember(op.Index, op.Field, op.Member, op.Checked)
	case OpSet:
		err = c.SetField(op.Field, op.Value)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownOp, op.Op)
	}
	if err != nil {
		return SectionView{}, err
	}
	return c.View(nil)
}
