package simulation

import (
	"testing"
	"time"

	"metering-service/internal/detector"
	"metering-service/internal/models"
)

func TestSynthesize_TripsExactlyTheTaggedGuard(t *testing.T) {
	t.Parallel()

	cases := []struct {
		scenario Scenario
		trigger  models.Trigger
		severity models.Severity
	}{
		{ScenarioBurst, models.TriggerDefender, models.SeverityHigh},
		{ScenarioDrip, models.TriggerSentinel, models.SeverityLow},
		{ScenarioHighUsage, models.TriggerGuardian, models.SeverityMedium},
	}

	d := detector.New(detector.DefaultConfig())
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, tc := range cases {
		t.Run(string(tc.scenario), func(t *testing.T) {
			t.Parallel()

			readings := Synthesize(tc.scenario, "m1", start)
			if len(readings) < 2 {
				t.Fatalf("scenario produced %d readings", len(readings))
			}

			got := d.Evaluate("a1", readings)
			if len(got) != 1 {
				t.Fatalf("got %d alerts, want exactly 1: %+v", len(got), got)
			}
			if got[0].Trigger != tc.trigger {
				t.Errorf("trigger=%s want %s", got[0].Trigger, tc.trigger)
			}
			if got[0].Severity != tc.severity {
				t.Errorf("severity=%s want %s", got[0].Severity, tc.severity)
			}
		})
	}
}

func TestSynthesize_UnknownScenario(t *testing.T) {
	t.Parallel()

	if got := Synthesize("FLOOD", "m1", time.Now()); got != nil {
		t.Fatalf("Synthesize(FLOOD)=%v want nil", got)
	}
}
