package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"calinvite/internal/models"
)

func TestBuildChoice(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 7, 14, 0, 0, 0, time.UTC)
	p := models.ScheduleProposal{Slots: []models.TimeSlot{
		{ID: "a1", Start: base, End: base.Add(time.Hour)},
		{ID: "b2", Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)},
	}}

	tests := []struct {
		name    string
		selects []string
		alts    []string
		none    bool
		want    models.ResponseStatus
		wantErr bool
	}{
		{name: "by id", selects: []string{"b2"}, want: models.StatusSelectedSuggested},
		{name: "by index", selects: []string{"0"}, want: models.StatusSelectedSuggested},
		{name: "unknown slot", selects: []string{"7"}, wantErr: true},
		{name: "alternative", alts: []string{"2025-06-08T10:00/2025-06-08T11:00"}, want: models.StatusProposedAlternative},
		{name: "alternative without end", alts: []string{"2025-06-08T10:00"}, wantErr: true},
		{name: "none", none: true, want: models.StatusNoneWork},
		{name: "nothing", want: models.StatusPending},
		{name: "conflicting flags", selects: []string{"a1"}, none: true, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := buildChoice(p, tt.selects, tt.alts, tt.none, time.UTC)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("buildChoice() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildChoice() error = %v", err)
			}
			if got.Status() != tt.want {
				t.Fatalf("buildChoice() status = %s, want %s", got.Status(), tt.want)
			}
		})
	}

	got, err := buildChoice(p, []string{"1"}, nil, false, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if ids := got.(models.SelectedSuggested).SlotIDs; len(ids) != 1 || ids[0] != "b2" {
		t.Fatalf("index 1 resolved to %v, want b2", ids)
	}
}

func TestParseInstant(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("CEST", 2*60*60)
	got, err := parseInstant("2025-06-07T19:30", loc)
	if err != nil || !got.Equal(time.Date(2025, 6, 7, 17, 30, 0, 0, time.UTC)) {
		t.Fatalf("parseInstant(local) = %v, %v", got, err)
	}
	got, err = parseInstant("2025-06-07T19:30:00Z", loc)
	if err != nil || !got.Equal(time.Date(2025, 6, 7, 19, 30, 0, 0, time.UTC)) {
		t.Fatalf("parseInstant(RFC 3339) = %v, %v", got, err)
	}
	if _, err := parseInstant("tomorrow", loc); err == nil {
		t.Fatal("parseInstant accepted nonsense")
	}
}

func TestPrintTopSlots(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 7, 14, 0, 0, 0, time.UTC)
	p := models.ScheduleProposal{Slots: []models.TimeSlot{
		{ID: "a", Start: base, End: base.Add(time.Hour), Selections: map[string]bool{"u1": true}},
		{ID: "b", Start: base.Add(time.Hour), End: base.Add(2 * time.Hour), Selections: map[string]bool{"u1": true, "u2": true}},
		{ID: "c", Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour)},
	}}

	var buf bytes.Buffer
	printTopSlots(&buf, p, 2, time.UTC)
	want := "Most popular:\n" +
		"  Jun 7, 2025 from 3:00 PM to 4:00 PM (2)\n" +
		"  Jun 7, 2025 from 2:00 PM to 3:00 PM (1)\n"
	if buf.String() != want {
		t.Fatalf("printTopSlots() wrote\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	printTopSlots(&buf, p, 0, time.UTC)
	if strings.TrimSpace(buf.String()) != "" {
		t.Fatalf("printTopSlots(0) wrote %q", buf.String())
	}
}
