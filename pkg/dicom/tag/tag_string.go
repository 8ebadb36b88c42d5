package tag

import "fmt"

// String renders t as (GGGG,EEEE)
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// MarshalText lets tags serve as JSON values and map keys
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
