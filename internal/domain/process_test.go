package domain

import (
	"errors"
	"testing"
)

func TestValidateOperation(t *testing.T) {
	tests := []struct {
		name    string
		kind    ProcessType
		params  Params
		wantErr error
	}{
		{name: "known kind no requirements", kind: ProcessBackgroundRemove, params: Params{}},
		{name: "required param present", kind: ProcessRotate, params: Params{"rotationAngle": 45.0}},
		{name: "required param missing", kind: ProcessRotate, params: Params{}, wantErr: ErrMissingParams},
		{name: "unknown kind", kind: ProcessType("teleport"), params: Params{}, wantErr: ErrInvalidProcess},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateOperation(tc.kind, tc.params)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateOperation() = %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ValidateOperation() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestMissingParamsNamesEveryAbsentOne(t *testing.T) {
	missing := MissingParams(ProcessTextAdd, Params{})
	if len(missing) != 1 || missing[0] != "textContent" {
		t.Fatalf("missing = %v", missing)
	}
	if got := MissingParams(ProcessTextAdd, Params{"textContent": "SALE"}); len(got) != 0 {
		t.Fatalf("missing = %v, want none", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusCompleted:  true,
		StatusError:      true,
	} {
		if status.Terminal() != want {
			t.Errorf("%s.Terminal() = %v", status, !want)
		}
	}
}

func TestParamsAccessors(t *testing.T) {
	p := Params{"s": "x", "f": 1.5, "i": 3.0}
	if p.StringOr("s", "d") != "x" || p.StringOr("missing", "d") != "d" {
		t.Error("StringOr")
	}
	if p.FloatOr("f", 0) != 1.5 || p.FloatOr("missing", 2.5) != 2.5 {
		t.Error("FloatOr")
	}
	if p.IntOr("i", 0) != 3 || p.IntOr("missing", 7) != 7 {
		t.Error("IntOr")
	}
}
