package models

import "testing"

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusOnline, StatusAway, StatusInvisible, StatusOffline} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []Status{"", "busy", "ONLINE"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}
