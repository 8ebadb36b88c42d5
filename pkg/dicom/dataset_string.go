package dicom

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

func (e *Element) String() string {
	var b strings.Builder
	e.writeTo(&b, "")
	return b.String()
}

// summarize shortens bulk values; limit is the longest list or byte
// value printed in full
func summarize(v any, limit int) any {
	switch v := v.(type) {
	case *PixelData:
		return fmt.Sprintf("<pixel data, %d frames>", len(v.Frames))
	case []byte:
		if len(v) > limit {
			return fmt.Sprintf("<%d bytes>", len(v))
		}
	case []uint16:
		if len(v) > limit {
			return fmt.Sprintf("<%d values>", len(v))
		}
	case []float32:
		if len(v) > limit {
			return fmt.Sprintf("<%d floats>", len(v))
		}
	}
	return v
}

// writeTo prints one element per line, descending into sequence items
func (e *Element) writeTo(b *strings.Builder, indent string) {
	name := e.Tag.LookupName()
	items, isSeq := e.Value.([]*Dataset)
	if !isSeq {
		fmt.Fprintf(b, "%s%s %s %s = %v", indent, e.Tag, e.VR, name, summarize(e.Value, 16))
		return
	}
	fmt.Fprintf(b, "%s%s SQ %s (%d items)", indent, e.Tag, name, len(items))
	for i, item := range items {
		fmt.Fprintf(b, "\n%s  item %d", indent, i+1)
		for _, k := range item.sortedTags() {
			b.WriteByte('\n')
			item.Elements[k].writeTo(b, indent+"    ")
		}
	}
}

func (e *Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tag   Tag    `json:"tag"`
		Name  string `json:"name,omitempty"`
		VR    string `json:"vr"`
		Value any    `json:"value"`
	}{e.Tag, e.Tag.LookupName(), e.VR, summarize(e.Value, 64)})
}

func (ds *Dataset) sortedTags() []Tag {
	keys := make([]Tag, 0, len(ds.Elements))
	for k := range ds.Elements {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (ds *Dataset) String() string {
	if ds == nil {
		return "<nil>"
	}
	var b strings.Builder
	for _, k := range ds.sortedTags() {
		ds.Elements[k].writeTo(&b, "")
		b.WriteByte('\n')
	}
	return b.String()
}

// MarshalJSON emits the elements as an array in tag order
func (ds *Dataset) MarshalJSON() ([]byte, error) {
	elements := make([]*Element, 0, len(ds.Elements))
	for _, k := range ds.sortedTags() {
		elements = append(elements, ds.Elements[k])
	}
	return json.Marshal(elements)
}
