package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splat-replay/splat-replay/internal/bus"
	"github.com/splat-replay/splat-replay/internal/models"
)

func newTestHandlers(fa FrameAnalyzer) (*Handlers, *bus.EventBus) {
	events := bus.NewEventBus(32)
	h := NewHandlers(fa, nil, events, nil)
	return h, events
}

func TestStoppedHandlerStartsOnMatching(t *testing.T) {
	fa := newFakeAnalyzer()
	fa.set("matching_start", true)
	h, _ := newTestHandlers(fa)

	cmd, err := h.Handle(t.Context(), newTestFrame(t), NewContext(), StateStopped)
	require.NoError(t, err)
	assert.Equal(t, ActionStart, cmd.Action)
}

func TestStoppedHandlerTracksLobby(t *testing.T) {
	fa := newFakeAnalyzer()
	fa.gameMode = models.ModeSalmon
	rate := models.Rate{Kind: models.RateXP, XP: 2300}
	fa.rate = &rate
	h, _ := newTestHandlers(fa)

	cmd, err := h.Handle(t.Context(), newTestFrame(t), NewContext(), StateStopped)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, cmd.Action)
	assert.Equal(t, models.ModeSalmon, cmd.Context.Metadata.GameMode)
	require.NotNil(t, cmd.Context.Metadata.Rate)
	assert.Equal(t, rate, *cmd.Context.Metadata.Rate)
}

func TestStoppedHandlerRespectsManualFields(t *testing.T) {
	fa := newFakeAnalyzer()
	fa.gameMode = models.ModeSalmon
	h, _ := newTestHandlers(fa)

	rc := NewContext().MarkManual(models.FieldGameMode)
	cmd, err := h.Handle(t.Context(), newTestFrame(t), rc, StateStopped)
	require.NoError(t, err)
	assert.Equal(t, models.ModeBattle, cmd.Context.Metadata.GameMode)
}

func TestMatchingHandler(t *testing.T) {
	t.Run("session start", func(t *testing.T) {
		fa := newFakeAnalyzer()
		fa.set("session_start", true)
		h, _ := newTestHandlers(fa)

		cmd, err := h.Handle(t.Context(), newTestFrame(t), NewContext(), StateMatching)
		require.NoError(t, err)
		assert.Equal(t, ActionStart, cmd.Action)
	})

	t.Run("schedule change cancels", func(t *testing.T) {
		fa := newFakeAnalyzer()
		fa.set("schedule_change", true)
		h, _ := newTestHandlers(fa)

		cmd, err := h.Handle(t.Context(), newTestFrame(t), NewContext(), StateMatching)
		require.NoError(t, err)
		assert.Equal(t, ActionCancel, cmd.Action)
	})
}

func TestRecordingHandler(t *testing.T) {
	newRC := func(startedAgo time.Duration) Context {
		rc := NewContext()
		rc.BattleStartedAt = time.Now().Add(-startedAgo)
		return rc
	}

	t.Run("abort inside the early window cancels", func(t *testing.T) {
		fa := newFakeAnalyzer()
		fa.set("session_abort", true)
		h, _ := newTestHandlers(fa)

		cmd, err := h.Handle(t.Context(), newTestFrame(t), newRC(30*time.Second), StateRecording)
		require.NoError(t, err)
		assert.Equal(t, ActionCancel, cmd.Action)
	})

	t.Run("abort after the window is ignored", func(t *testing.T) {
		fa := newFakeAnalyzer()
		fa.set("session_abort", true)
		h, _ := newTestHandlers(fa)

		cmd, err := h.Handle(t.Context(), newTestFrame(t), newRC(90*time.Second), StateRecording)
		require.NoError(t, err)
		assert.Equal(t, ActionNone, cmd.Action)
	})

	t.Run("ten minute cap stops", func(t *testing.T) {
		fa := newFakeAnalyzer()
		h, _ := newTestHandlers(fa)

		cmd, err := h.Handle(t.Context(), newTestFrame(t), newRC(601*time.Second), StateRecording)
		require.NoError(t, err)
		assert.Equal(t, ActionStop, cmd.Action)
	})

	t.Run("finish pauses and marks the context", func(t *testing.T) {
		fa := newFakeAnalyzer()
		fa.set("session_finish", true)
		h, _ := newTestHandlers(fa)

		cmd, err := h.Handle(t.Context(), newTestFrame(t), newRC(3*time.Minute), StateRecording)
		require.NoError(t, err)
		assert.Equal(t, ActionPause, cmd.Action)
		assert.True(t, cmd.Context.FinishDetected)
	})

	t.Run("communication error cancels", func(t *testing.T) {
		fa := newFakeAnalyzer()
		fa.set("communication_error", true)
		h, _ := newTestHandlers(fa)

		cmd, err := h.Handle(t.Context(), newTestFrame(t), newRC(3*time.Minute), StateRecording)
		require.NoError(t, err)
		assert.Equal(t, ActionCancel, cmd.Action)
	})
}

func TestPausedHandler(t *testing.T) {
	t.Run("judgement screen records the judgement", func(t *testing.T) {
		fa := newFakeAnalyzer()
		fa.set("session_judgement", true)
		fa.judgement = models.JudgementWin
		h, _ := newTestHandlers(fa)

		rc := NewContext()
		rc.FinishDetected = true
		cmd, err := h.Handle(t.Context(), newTestFrame(t), rc, StatePaused)
		require.NoError(t, err)
		assert.Equal(t, ActionNone, cmd.Action)
		assert.Equal(t, models.JudgementWin, cmd.Context.Metadata.Judgement)
	})

	t.Run("result screen captures the frame and stops", func(t *testing.T) {
		fa := newFakeAnalyzer()
		fa.set("session_result", true)
		h, _ := newTestHandlers(fa)

		f := newTestFrame(t)
		cmd, err := h.Handle(t.Context(), f, NewContext(), StatePaused)
		require.NoError(t, err)
		assert.Equal(t, ActionStop, cmd.Action)
		assert.Same(t, f, cmd.Context.ResultFrame)
	})

	t.Run("loading end resumes without a result", func(t *testing.T) {
		fa := newFakeAnalyzer()
		fa.set("loading_end", true)
		h, _ := newTestHandlers(fa)

		cmd, err := h.Handle(t.Context(), newTestFrame(t), NewContext(), StatePaused)
		require.NoError(t, err)
		assert.Equal(t, ActionResume, cmd.Action)
	})

	t.Run("loading end stops once a result was captured", func(t *testing.T) {
		fa := newFakeAnalyzer()
		fa.set("loading_end", true)
		h, _ := newTestHandlers(fa)

		rc := NewContext()
		rc.ResultFrame = newTestFrame(t)
		cmd, err := h.Handle(t.Context(), newTestFrame(t), rc, StatePaused)
		require.NoError(t, err)
		assert.Equal(t, ActionStop, cmd.Action)
	})
}

func TestStoppingHandlerIsInert(t *testing.T) {
	fa := newFakeAnalyzer()
	fa.set("session_result", true)
	fa.set("matching_start", true)
	h, _ := newTestHandlers(fa)

	for _, state := range []State{StateStopping, StateFinishing} {
		cmd, err := h.Handle(t.Context(), newTestFrame(t), NewContext(), state)
		require.NoError(t, err)
		assert.Equal(t, ActionNone, cmd.Action)
	}
}
