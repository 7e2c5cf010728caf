package model_test

import (
	"testing"
	"time"

	"github.com/CZERTAINLY/fossrun/internal/model"

	"github.com/stretchr/testify/require"
)

func TestParseISODuration(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		given    string
		then     time.Duration
		err      error
	}{
		{"hour", "PT1H", time.Hour, nil},
		{"day and time", "P1DT2H30M", 26*time.Hour + 30*time.Minute, nil},
		{"fraction", "PT1.5S", 1500 * time.Millisecond, nil},
		{"comma fraction", "PT0,25S", 250 * time.Millisecond, nil},
		{"days only", "P2D", 48 * time.Hour, nil},
		{"empty", "", 0, model.ErrISOFormat},
		{"bare P", "P", 0, model.ErrISOFormat},
		{"bare PT", "PT", 0, model.ErrISOFormat},
		{"months are ambiguous", "P2M", 0, model.ErrISOFormat},
		{"dangling T", "P2DT", 0, model.ErrISOFormat},
		{"garbage", "one hour", 0, model.ErrISOFormat},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			got, err := model.ParseISODuration(tc.given)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.then, got)
		})
	}
}

func TestTimerSchedule(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		given    model.TimerSchedule
		ok       bool
	}{
		{"cron", model.TimerSchedule{Cron: "*/15 * * * *"}, true},
		{"macro", model.TimerSchedule{Cron: "@hourly"}, true},
		{"every", model.TimerSchedule{Cron: "@every 5m"}, true},
		{"six fields", model.TimerSchedule{Cron: "0 */2 * * * *"}, false},
		{"duration", model.TimerSchedule{Duration: "PT10M"}, true},
		{"zero duration", model.TimerSchedule{Duration: "PT0S"}, false},
		{"both", model.TimerSchedule{Cron: "@hourly", Duration: "PT1H"}, false},
		{"none", model.TimerSchedule{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			err := tc.given.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
