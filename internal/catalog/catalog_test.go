package catalog

import "testing"

func TestFieldKeysUniquePerGroup(t *testing.T) {
	for _, g := range []Group{GroupPatient, GroupTooth, GroupExamination} {
		seen := map[string]bool{}
		for _, f := range Fields(g) {
			if seen[f.Key] {
				t.Fatalf("group %s: duplicate key %q", g, f.Key)
			}
			seen[f.Key] = true
		}
	}
}

func TestChoiceFieldsHaveChoiceSets(t *testing.T) {
	for _, g := range []Group{GroupPatient, GroupTooth, GroupExamination} {
		for _, f := range Fields(g) {
			if f.IsChoice() && len(Choices(f.Key)) == 0 {
				t.Errorf("%s/%s is a choice field without options", g, f.Key)
			}
			if !f.IsChoice() && len(Choices(f.Key)) != 0 {
				t.Errorf("%s/%s is a text field with options", g, f.Key)
			}
		}
	}
}

func TestWidth(t *testing.T) {
	if got := Width(); got != 22 {
		t.Fatalf("expected 22 catalog columns, got %d", got)
	}
}

func TestApplicable_CariesSite(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		want      bool
	}{
		{"caries requires site", "Karies", true},
		{"normal skips site", "Normal", false},
		{"unknown label skips site", "whatever", false},
		{"missing condition skips site", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]string{FieldCondition: tt.condition}
			if got := Applicable(GroupTooth, FieldCariesSite, values); got != tt.want {
				t.Fatalf("Applicable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplicable_UnconditionalAlwaysTrue(t *testing.T) {
	if !Applicable(GroupTooth, FieldTreatment, nil) {
		t.Fatal("unconditional field must be applicable")
	}
	if Applicable(GroupTooth, "nope", nil) {
		t.Fatal("unknown field must not be applicable")
	}
}

func TestFindOptionAndLabel(t *testing.T) {
	o, ok := FindOption(FieldCariesSite, "O")
	if !ok || o.Label != "O-car" || o.ImageURL == "" {
		t.Fatalf("unexpected option %+v ok=%v", o, ok)
	}
	back, ok := OptionByLabel(FieldCariesSite, "O-car")
	if !ok || back.Key != "O" {
		t.Fatalf("label lookup failed: %+v", back)
	}
	if _, ok := FindOption(FieldCariesSite, "X"); ok {
		t.Fatal("unexpected option for unknown key")
	}
}

func TestLookup(t *testing.T) {
	f, idx, ok := Lookup(GroupPatient, FieldOperator)
	if !ok || idx != 7 || f.Prefill != PrefillOperator {
		t.Fatalf("Lookup = %+v %d %v", f, idx, ok)
	}
}
