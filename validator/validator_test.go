package validator

import "testing"

func Test_Validator_AsError(t *testing.T) {
	v := New()
	if err := v.AsError(); err != nil {
		t.Errorf("empty validator returned error: %v", err)
	}

	v.AddError("Content", "Content is required")
	v.Check(false, "Content", "Content is too long")
	v.Check(true, "Name", "should not be added")

	err := v.AsError()
	if err == nil {
		t.Fatal("expected error after AddError")
	}

	if got := v.First("Content"); got != "Content is required" {
		t.Errorf("First(Content) = %q", got)
	}
	if v.First("Name") != "" {
		t.Error("passing Check must not record an error")
	}
	if err.Error() == "" {
		t.Error("error message is empty")
	}
}
