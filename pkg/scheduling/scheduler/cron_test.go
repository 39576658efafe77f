package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/asyncsched/internal/testutil"
	aserrors "github.com/vnykmshr/asyncsched/pkg/common/errors"
	"github.com/vnykmshr/asyncsched/pkg/scheduling/decorator"
)

func TestValidateCronExpression(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"30 */5 * * * *", false},
		{"@hourly", false},
		{"@every 90s", false},
		{"", true},
		{"not a cron", true},
		{"61 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCronNextUsesLocation(t *testing.T) {
	schedule, err := parseCron("0 9 * * *")
	require.NoError(t, err)

	loc := time.FixedZone("UTC+3", 3*60*60)
	next := cronNext(schedule, loc)

	now := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC) // 08:00 at UTC+3
	at, ok := next(0, now)
	require.True(t, ok)
	assert.True(t, at.Equal(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)), "got %v", at)
}

func TestScheduler_ScheduleCron(t *testing.T) {
	s, _ := newTestScheduler(t, Config{WorkerCount: 1, Location: time.UTC})

	var executed int32
	h, err := s.ScheduleCron(counting(&executed), "* * * * * *")
	require.NoError(t, err)

	testutil.WaitForInt32(t, &executed, 1, 3*time.Second)
	h.Cancel()
	waitHandle(t, h)
	assert.ErrorIs(t, h.Err(), aserrors.ErrCancelled)
}

func TestScheduler_ScheduleCronInvalid(t *testing.T) {
	s, _ := newTestScheduler(t, Config{WorkerCount: 1})

	_, err := s.ScheduleCron(decorator.RunnableFunc(noop), "every day")
	assert.ErrorContains(t, err, "invalid cron expression")

	_, err = s.ScheduleCron(nil, "@hourly")
	assert.ErrorIs(t, err, aserrors.ErrNilTask)
}
