package services

import (
	"reflect"

	"github.com/nexuscrm/taskdesk/pkg/utils"
)

// Change is one field's before and after values.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Changes maps field name to its change. Only fields whose value actually
// differs are recorded.
type Changes map[string]Change

// Track records field if before and after differ. Pointers are compared by
// the value they point to, so nil and a pointer to "" are different.
func (c Changes) Track(field string, before, after any) {
	o, n := deref(before), deref(after)
	if o == nil && n == nil {
		return
	}
	if o != nil && n != nil && utils.ToString(o) == utils.ToString(n) {
		return
	}
	c[field] = Change{Old: o, New: n}
}

func (c Changes) Empty() bool { return len(c) == 0 }

// Payload renders the changes for an event payload.
func (c Changes) Payload() map[string]any {
	out := make(map[string]any, len(c))
	for f, ch := range c {
		out[f] = map[string]any{"old": ch.Old, "new": ch.New}
	}
	return out
}

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return v
	}
	if rv.IsNil() {
		return nil
	}
	return rv.Elem().Interface()
}
