// File: api/events_test.go
// Author: momentics <momentics@gmail.com>

package api

import "testing"

func TestEventTypeString(t *testing.T) {
	cases := []struct {
		mask EventType
		want string
	}{
		{0, "none"},
		{EventRead, "read"},
		{EventWrite, "write"},
		{EventRead | EventWrite, "read|write"},
		{EventErr | EventHup, "err|hup"},
		{EventRead | EventWrite | EventErr | EventHup, "read|write|err|hup"},
	}
	for _, c := range cases {
		if got := c.mask.String(); got != c.want {
			t.Errorf("EventType(%d).String() = %q, want %q", c.mask, got, c.want)
		}
	}
}
