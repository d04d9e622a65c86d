package risk

import (
	"reflect"
	"testing"

	"fieldops-gateway/internal/model"
)

func table() Table {
	return Table{
		"A-100": {"stress": {Warn: 60, Crit: 80}},
	}
}

func reading(assetID, metric string, value float64) model.Reading {
	return model.Reading{DeviceID: "d-1", AssetID: assetID, Metric: metric, Value: value}
}

func TestClassifyLevels(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  model.RiskLevel
		fired bool
	}{
		{"below warn", 59.9, "", false},
		{"at warn", 60, model.LevelWarning, true},
		{"between", 79.9, model.LevelWarning, true},
		{"at crit", 80, model.LevelCritical, true},
		{"above crit", 120, model.LevelCritical, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, fired := Classify(reading("A-100", "stress", tt.value), table())
			if fired != tt.fired {
				t.Fatalf("fired = %v, want %v", fired, tt.fired)
			}
			if fired && evt.Level != tt.want {
				t.Fatalf("level = %q, want %q", evt.Level, tt.want)
			}
		})
	}
}

func TestClassifyCarriesReadingAndReason(t *testing.T) {
	r := reading("A-100", "stress", 85)
	evt, fired := Classify(r, table())
	if !fired {
		t.Fatal("expected a risk event")
	}
	if evt.Reason != "stress >= 80" {
		t.Fatalf("reason = %q", evt.Reason)
	}
	if !reflect.DeepEqual(evt.Reading, r) {
		t.Fatalf("event must carry the triggering reading, got %+v", evt.Reading)
	}
}

func TestUnmonitoredPairsNeverAlarm(t *testing.T) {
	tbl := table()
	for _, r := range []model.Reading{
		reading("A-100", "vibration", 1e9),
		reading("A-999", "stress", 1e9),
	} {
		if _, fired := Classify(r, tbl); fired {
			t.Fatalf("unmonitored %s/%s must not alarm", r.AssetID, r.Metric)
		}
	}
}

func TestMisconfiguredCritBelowWarnPrefersCritical(t *testing.T) {
	tbl := Table{"A-1": {"usage": {Warn: 80, Crit: 50}}}

	evt, fired := Classify(reading("A-1", "usage", 60), tbl)
	if !fired || evt.Level != model.LevelCritical {
		t.Fatalf("value between crit and warn must classify critical, got %+v fired=%v", evt, fired)
	}
	evt, fired = Classify(reading("A-1", "usage", 90), tbl)
	if !fired || evt.Level != model.LevelCritical {
		t.Fatalf("value above both must classify critical, got %+v fired=%v", evt, fired)
	}
	if _, fired := Classify(reading("A-1", "usage", 40), tbl); fired {
		t.Fatal("value below both must not alarm")
	}
}
