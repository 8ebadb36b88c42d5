package dicom

import (
	"errors"
	"fmt"
)

// SequenceBuilder collects the items of one sequence element. Item errors
// are held until Build so AddItem calls chain.
type SequenceBuilder struct {
	tag   Tag
	items []*Dataset
	err   error
	n     int
}

func NewSequenceBuilder(t Tag) *SequenceBuilder {
	return &SequenceBuilder{tag: t}
}

// AddItem appends an item built from opts
func (sb *SequenceBuilder) AddItem(opts ...Option) *SequenceBuilder {
	sb.n++
	item, err := NewDataset(opts...)
	if err != nil {
		sb.err = errors.Join(sb.err, fmt.Errorf("%s item %d: %w", sb.tag, sb.n, err))
		return sb
	}
	sb.items = append(sb.items, item)
	return sb
}

// Len is the number of good items
func (sb *SequenceBuilder) Len() int { return len(sb.items) }

// Build returns the sequence as an Option, or every item error joined
func (sb *SequenceBuilder) Build() (Option, error) {
	if sb.err != nil {
		return nil, sb.err
	}
	return WithSequence(sb.tag, append([]*Dataset(nil), sb.items...)...), nil
}
