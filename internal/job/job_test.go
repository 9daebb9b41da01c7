package job_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/blacklight/internal/job"
)

func TestResetForRunTransitionsIdleToRunning(t *testing.T) {
	c := job.New()
	require.Equal(t, job.Idle, c.State())
	require.NoError(t, c.ResetForRun())
	require.Equal(t, job.Running, c.State())
}

func TestResetForRunRejectedWhileRunning(t *testing.T) {
	c := job.New()
	require.NoError(t, c.ResetForRun())
	require.Error(t, c.ResetForRun())
}

func TestPauseResumeCycle(t *testing.T) {
	c := job.New()
	require.NoError(t, c.ResetForRun())

	require.NoError(t, c.Pause())
	require.Equal(t, job.Paused, c.State())
	require.True(t, c.ShouldPause())

	require.NoError(t, c.Resume())
	require.Equal(t, job.Running, c.State())
	require.False(t, c.ShouldPause())
}

func TestPauseRejectedWhenNotRunning(t *testing.T) {
	c := job.New()
	require.Error(t, c.Pause())
}

func TestCancelFromPausedClearsPauseFlag(t *testing.T) {
	c := job.New()
	require.NoError(t, c.ResetForRun())
	require.NoError(t, c.Pause())

	require.NoError(t, c.Cancel())
	require.True(t, c.ShouldCancel())
	require.False(t, c.ShouldPause())
}

func TestCompleteReflectsCancelRequest(t *testing.T) {
	c := job.New()
	require.NoError(t, c.ResetForRun())
	require.NoError(t, c.Cancel())
	c.Complete("done")
	require.Equal(t, job.Cancelled, c.State())
}

func TestCompleteWithoutCancelIsCompleted(t *testing.T) {
	c := job.New()
	require.NoError(t, c.ResetForRun())
	c.Complete("report")
	require.Equal(t, job.Completed, c.State())
	report, lastErr := c.LastReport()
	require.Equal(t, "report", report)
	require.Empty(t, lastErr)
}

func TestFailRecordsError(t *testing.T) {
	c := job.New()
	require.NoError(t, c.ResetForRun())
	c.Fail(errors.New("boom"))
	require.Equal(t, job.Failed, c.State())
	_, lastErr := c.LastReport()
	require.Equal(t, "boom", lastErr)
}

func TestUpdateProgressIsConcurrencySafe(t *testing.T) {
	c := job.New()
	require.NoError(t, c.ResetForRun())
	c.UpdateProgress(func(p job.Progress) job.Progress {
		p.FilesDone++
		p.Phase = "scan"
		return p
	})
	p := c.Progress()
	require.Equal(t, 1, p.FilesDone)
	require.Equal(t, "scan", p.Phase)
}
