package bot

import "testing"

func TestRateLimiter(t *testing.T) {
	r := NewRateLimiter()

	if r.IsLimited(1, "/start") {
		t.Errorf("first call must pass")
	}
	if !r.IsLimited(1, "/start") {
		t.Errorf("immediate repeat must be limited")
	}
	// Другое действие того же пользователя лимитируется отдельно
	if r.IsLimited(1, "confirm_gift") {
		t.Errorf("different action must pass")
	}
	// Другой пользователь не задет
	if r.IsLimited(2, "/start") {
		t.Errorf("different user must pass")
	}
}

func TestRateLimiterDefaultLimit(t *testing.T) {
	r := NewRateLimiter()
	if r.IsLimited(1, "some_unlisted_action") {
		t.Errorf("first call to unlisted action must pass")
	}
	if !r.IsLimited(1, "some_unlisted_action") {
		t.Errorf("unlisted action still gets the default limit")
	}
}
