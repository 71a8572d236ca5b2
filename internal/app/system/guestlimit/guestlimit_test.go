package guestlimit

import "testing"

func TestEvaluate_GuestProgression(t *testing.T) {
	tr := New(true)

	tests := []struct {
		name string
		used int
		want Status
	}{
		{
			name: "fresh guest",
			used: 0,
			want: Status{IsLimited: true, Limit: 3, Used: 0, Remaining: 3, CanCreate: true},
		},
		{
			name: "one left is near limit",
			used: 2,
			want: Status{IsLimited: true, Limit: 3, Used: 2, Remaining: 1, CanCreate: true, IsNearLimit: true},
		},
		{
			name: "at limit",
			used: 3,
			want: Status{IsLimited: true, Limit: 3, Used: 3, Remaining: 0, CanCreate: false, IsNearLimit: true, IsAtLimit: true},
		},
		{
			name: "over limit clamps to zero remaining",
			used: 5,
			want: Status{IsLimited: true, Limit: 3, Used: 5, Remaining: 0, CanCreate: false, IsNearLimit: true, IsAtLimit: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Evaluate(true, tt.used)
			if got != tt.want {
				t.Errorf("Evaluate(true, %d) = %+v, want %+v", tt.used, got, tt.want)
			}
		})
	}
}

func TestEvaluate_PermanentIdentityUnlimited(t *testing.T) {
	tr := New(true)

	got := tr.Evaluate(false, 10)
	if got.IsLimited || !got.CanCreate {
		t.Errorf("permanent identity should be unlimited, got %+v", got)
	}
}

// The global flag disables limiting entirely and must short-circuit before
// any quota math.
func TestEvaluate_FlagDisablesLimiting(t *testing.T) {
	tr := New(false)

	got := tr.Evaluate(true, 100)
	if got.IsLimited || !got.CanCreate || got.IsAtLimit || got.IsNearLimit {
		t.Errorf("disabled tracker should never limit, got %+v", got)
	}
}
