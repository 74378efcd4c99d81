package speech

import "testing"

func TestMachineAllowsTabledTransitions(t *testing.T) {
	cases := []struct {
		from, to Mode
		ok       bool
	}{
		{Stopped, ManualPlaying, true},
		{Stopped, AutoPlaying, true},
		{ManualPlaying, Stopped, true},
		{ManualPlaying, AutoPlaying, true},
		{AutoPlaying, Stopped, true},
		{AutoPlaying, ManualPlaying, false},
		{Stopped, Stopped, false},
		{ManualPlaying, ManualPlaying, false},
	}

	for _, tc := range cases {
		m := newMachine()
		if tc.from != Stopped && !m.transition(tc.from) {
			t.Fatalf("cannot reach starting mode %s", tc.from)
		}
		if got := m.transition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestMachineRejectedTransitionKeepsMode(t *testing.T) {
	m := newMachine()
	if !m.transition(AutoPlaying) {
		t.Fatal("cannot enter autoplay")
	}
	if m.transition(ManualPlaying) {
		t.Fatal("autoplay -> manual should be rejected")
	}
	if m.mode() != AutoPlaying {
		t.Errorf("mode = %s after rejected transition, want autoplay", m.mode())
	}
}

func TestMachineEnterHookSeesOrigin(t *testing.T) {
	m := newMachine()

	var from Mode = -1
	m.enterHook(Stopped, func(origin Mode) { from = origin })

	m.transition(ManualPlaying)
	m.transition(Stopped)

	if from != ManualPlaying {
		t.Errorf("enter hook origin = %v, want manual", from)
	}
}
