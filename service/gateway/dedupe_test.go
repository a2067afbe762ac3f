package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupeGuardSuppressesRepeatsWithinCooldown(t *testing.T) {
	clk := newFakeClock()
	g := NewDedupeGuard(2*time.Second, clk.Now)

	assert.True(t, g.FirstSight(TypeUserMessage, "u1", "r1"))
	assert.False(t, g.FirstSight(TypeUserMessage, "u1", "r1"), "repeat inside cooldown")

	// a different kind, user or room is its own key
	assert.True(t, g.FirstSight(TypePlanApproval, "u1", "r1"))
	assert.True(t, g.FirstSight(TypeUserMessage, "u2", "r1"))
	assert.True(t, g.FirstSight(TypeUserMessage, "u1", "r2"))

	clk.Advance(2100 * time.Millisecond)
	assert.True(t, g.FirstSight(TypeUserMessage, "u1", "r1"), "cooldown elapsed")
}

func TestDedupeGuardKeepsOriginalDeadline(t *testing.T) {
	clk := newFakeClock()
	g := NewDedupeGuard(2*time.Second, clk.Now)

	assert.True(t, g.FirstSight(TypeFeedback, "u1", "r1"))

	// hammering inside the window must not extend it
	clk.Advance(time.Second)
	assert.False(t, g.FirstSight(TypeFeedback, "u1", "r1"))
	clk.Advance(1100 * time.Millisecond)
	assert.True(t, g.FirstSight(TypeFeedback, "u1", "r1"), "original deadline passed")
}
