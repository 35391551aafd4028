package comp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/comp-engine/comp"
	"github.com/warp/comp-engine/comp/store"
	"github.com/warp/comp-engine/notify"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*comp.Service, *store.Memory, *notify.Recorder) {
	t.Helper()
	mem := store.NewMemory()
	recorder := notify.NewRecorder()
	service, err := comp.NewService(mem, testCatalog(), recorder)
	require.NoError(t, err)
	return service, mem, recorder
}

func april2026() comp.Month { return comp.NewMonth(2026, time.April) }
func may2026() comp.Month   { return comp.NewMonth(2026, time.May) }

func submitInput(month comp.Month) comp.SubmitInput {
	return comp.SubmitInput{
		EmployeeID:     "emp-1",
		AnnualCTC:      money(1_200_000),
		EffectiveMonth: month,
		SubmittedBy:    "hr-1",
	}
}

func hrAuth() comp.Authorization {
	return comp.Authorization{ActorID: "mgr-1", Role: "manager", Allowed: true}
}

// eventSeen waits for the fire-and-forget dispatch goroutine.
func eventSeen(t *testing.T, recorder *notify.Recorder, event comp.NotificationEvent) {
	t.Helper()
	assert.Eventually(t, func() bool {
		for _, n := range recorder.Events() {
			if n.Event == event {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "notification %s never dispatched", event)
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_CreatesPendingWithFrozenSnapshot(t *testing.T) {
	service, _, recorder := newTestService(t)
	ctx := context.Background()

	structure, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)

	assert.Equal(t, comp.StatusPending, structure.Status)
	assert.Equal(t, comp.EmployeeID("emp-1"), structure.EmployeeID)
	assert.Nil(t, structure.PreviousStructureID)
	require.NotNil(t, structure.Resolved)
	assert.True(t, structure.Resolved.Summary.GrossMonthly.Equal(money(100_000)))

	eventSeen(t, recorder, comp.EventStructureSubmitted)
}

func TestSubmit_ResolutionFailure_NothingPersisted(t *testing.T) {
	// A submission that would force the balance negative must not create
	// any structure row.
	service, _, _ := newTestService(t)
	ctx := context.Background()

	in := submitInput(april2026())
	in.AnnualCTC = money(1_200_000)
	in.RetentionBonus = money(2_000_000)
	in.RetentionVestingMonths = 12

	_, err := service.Submit(ctx, in)
	assert.ErrorIs(t, err, comp.ErrCTCInsufficient)

	history, err := service.GetHistory(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSubmit_DuplicateEffectiveMonth_Rejected(t *testing.T) {
	// GIVEN: A pending structure for emp-1 effective April
	// WHEN: Submitting another structure for emp-1 effective April
	// THEN: The second insert loses the (employee, month) slot

	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)

	_, err = service.Submit(ctx, submitInput(april2026()))
	assert.ErrorIs(t, err, comp.ErrDuplicateEffectiveMonth)
}

func TestSubmit_AfterRejection_SameMonthAllowed(t *testing.T) {
	// Rejected structures release the month slot: HR fixes the numbers
	// and resubmits for the same effective month.
	service, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)

	_, err = service.Reject(ctx, first.ID, hrAuth(), "numbers look wrong")
	require.NoError(t, err)

	second, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSubmit_RetentionWithoutVesting_Rejected(t *testing.T) {
	service, _, _ := newTestService(t)

	in := submitInput(april2026())
	in.RetentionBonus = money(100_000)
	in.RetentionVestingMonths = 0

	_, err := service.Submit(context.Background(), in)
	assert.ErrorIs(t, err, comp.ErrValidation)
}

// =============================================================================
// APPROVE
// =============================================================================

func TestApprove_SetsCurrentStructure(t *testing.T) {
	service, _, recorder := newTestService(t)
	ctx := context.Background()

	submitted, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)

	approved, err := service.Approve(ctx, submitted.ID, hrAuth(), "within band")
	require.NoError(t, err)

	assert.Equal(t, comp.StatusApproved, approved.Status)
	assert.Equal(t, "mgr-1", approved.DecidedBy)
	require.NotNil(t, approved.DecidedAt)

	current, err := service.GetCurrent(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, submitted.ID, current.ID)

	eventSeen(t, recorder, comp.EventStructureApproved)
}

func TestApprove_SecondCall_NotPending(t *testing.T) {
	// Approval is one-shot: the second decision on the same structure gets
	// an explicit conflict, never a silent success.
	service, _, _ := newTestService(t)
	ctx := context.Background()

	submitted, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)

	_, err = service.Approve(ctx, submitted.ID, hrAuth(), "")
	require.NoError(t, err)

	_, err = service.Approve(ctx, submitted.ID, hrAuth(), "")
	assert.ErrorIs(t, err, comp.ErrNotPending)
}

func TestApprove_WithoutAuthorization_Refused(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	submitted, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)

	for _, auth := range []comp.Authorization{
		{},
		{ActorID: "mgr-1", Allowed: false},
		{Allowed: true}, // no actor
	} {
		_, err = service.Approve(ctx, submitted.ID, auth, "")
		assert.ErrorIs(t, err, comp.ErrUnauthorized)
	}

	// The structure is untouched by refused attempts.
	got, err := service.Get(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, comp.StatusPending, got.Status)
}

func TestApprove_Supersedes_PreviousStructure(t *testing.T) {
	// GIVEN: An approved April structure
	// WHEN: A May revision is submitted and approved
	// THEN: The current pointer moves to May; April stays in history

	service, _, _ := newTestService(t)
	ctx := context.Background()

	april, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)
	_, err = service.Approve(ctx, april.ID, hrAuth(), "")
	require.NoError(t, err)

	mayIn := submitInput(may2026())
	mayIn.AnnualCTC = money(1_500_000)
	may, err := service.Submit(ctx, mayIn)
	require.NoError(t, err)
	require.NotNil(t, may.PreviousStructureID)
	assert.Equal(t, april.ID, *may.PreviousStructureID)

	_, err = service.Approve(ctx, may.ID, hrAuth(), "")
	require.NoError(t, err)

	current, err := service.GetCurrent(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, may.ID, current.ID)

	history, err := service.GetHistory(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, april.ID, history[0].ID)
	assert.Equal(t, may.ID, history[1].ID)
}

func TestApprove_StaleSubmission_CurrentConflict(t *testing.T) {
	// GIVEN: Two pending structures captured before any approval (both
	//        expect "no current structure")
	// WHEN: The first is approved
	// THEN: Approving the second loses the current-pointer CAS - its
	//       comparison baseline no longer reflects reality

	service, _, _ := newTestService(t)
	ctx := context.Background()

	april, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)
	may, err := service.Submit(ctx, submitInput(may2026()))
	require.NoError(t, err)

	_, err = service.Approve(ctx, april.ID, hrAuth(), "")
	require.NoError(t, err)

	_, err = service.Approve(ctx, may.ID, hrAuth(), "")
	assert.ErrorIs(t, err, comp.ErrCurrentConflict)

	// The loser stays pending for the approver to reload and re-decide.
	got, err := service.Get(ctx, may.ID)
	require.NoError(t, err)
	assert.Equal(t, comp.StatusPending, got.Status)
}

// =============================================================================
// REJECT
// =============================================================================

func TestReject_RequiresReason(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	submitted, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)

	_, err = service.Reject(ctx, submitted.ID, hrAuth(), "")
	assert.ErrorIs(t, err, comp.ErrValidation)
}

func TestReject_ThenApprove_NotPending(t *testing.T) {
	// GIVEN: A rejected structure
	// WHEN: Someone tries to approve it afterwards
	// THEN: Refused - rejection is terminal

	service, _, recorder := newTestService(t)
	ctx := context.Background()

	submitted, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)

	rejected, err := service.Reject(ctx, submitted.ID, hrAuth(), "out of band")
	require.NoError(t, err)
	assert.Equal(t, comp.StatusRejected, rejected.Status)
	assert.Equal(t, "out of band", rejected.RejectionReason)

	_, err = service.Approve(ctx, submitted.ID, hrAuth(), "")
	assert.ErrorIs(t, err, comp.ErrNotPending)

	// The current pointer never moved.
	_, err = service.GetCurrent(ctx, "emp-1")
	assert.ErrorIs(t, err, comp.ErrNoCurrentStructure)

	eventSeen(t, recorder, comp.EventStructureRejected)
}

// =============================================================================
// DRAFTS
// =============================================================================

func TestDraft_StagedThenSubmitted(t *testing.T) {
	service, _, recorder := newTestService(t)
	ctx := context.Background()

	in := submitInput(april2026())
	in.AsDraft = true
	draft, err := service.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, comp.StatusDraft, draft.Status)

	// Drafts are invisible to approvers and emit no notification.
	pending, err := service.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, recorder.Events())

	// Decisions on a draft are refused.
	_, err = service.Approve(ctx, draft.ID, hrAuth(), "")
	assert.ErrorIs(t, err, comp.ErrNotPending)

	submitted, err := service.SubmitForApproval(ctx, draft.ID, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, comp.StatusPending, submitted.Status)
	eventSeen(t, recorder, comp.EventStructureSubmitted)

	// Submit-for-approval is itself one-shot.
	_, err = service.SubmitForApproval(ctx, draft.ID, "hr-1")
	assert.ErrorIs(t, err, comp.ErrNotDraft)
}

func TestDraft_HoldsMonthSlot(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	in := submitInput(april2026())
	in.AsDraft = true
	_, err := service.Submit(ctx, in)
	require.NoError(t, err)

	_, err = service.Submit(ctx, submitInput(april2026()))
	assert.ErrorIs(t, err, comp.ErrDuplicateEffectiveMonth)
}

// =============================================================================
// READS
// =============================================================================

func TestGetCurrent_NoApprovedStructure(t *testing.T) {
	service, _, _ := newTestService(t)
	_, err := service.GetCurrent(context.Background(), "ghost")
	assert.ErrorIs(t, err, comp.ErrNoCurrentStructure)
}

func TestGet_UnknownID(t *testing.T) {
	service, _, _ := newTestService(t)
	_, err := service.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, comp.ErrStructureNotFound)
}

func TestStats_CountsByStatus(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	april, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)
	_, err = service.Approve(ctx, april.ID, hrAuth(), "")
	require.NoError(t, err)

	may, err := service.Submit(ctx, submitInput(may2026()))
	require.NoError(t, err)
	_, err = service.Reject(ctx, may.ID, hrAuth(), "hold for next cycle")
	require.NoError(t, err)

	june := submitInput(comp.NewMonth(2026, time.June))
	_, err = service.Submit(ctx, june)
	require.NoError(t, err)

	stats, err := service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingCount)
	assert.Equal(t, 1, stats.ApprovedCount)
	assert.Equal(t, 1, stats.RejectedCount)
}

// =============================================================================
// COMPARISON
// =============================================================================

func TestCompareToPrevious_FirstStructure_NotApplicable(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)

	cmp, err := service.CompareToPrevious(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, cmp.Applicable)
	assert.True(t, cmp.NewGrossMonthly.Equal(money(100_000)))
}

func TestCompareToPrevious_ReportsPercentChange(t *testing.T) {
	// April gross 1,00,000/mo; May revision at 15,00,000 CTC grosses
	// 1,25,000/mo: a 25% hike.
	service, _, _ := newTestService(t)
	ctx := context.Background()

	april, err := service.Submit(ctx, submitInput(april2026()))
	require.NoError(t, err)
	_, err = service.Approve(ctx, april.ID, hrAuth(), "")
	require.NoError(t, err)

	mayIn := submitInput(may2026())
	mayIn.AnnualCTC = money(1_500_000)
	may, err := service.Submit(ctx, mayIn)
	require.NoError(t, err)

	cmp, err := service.CompareToPrevious(ctx, may.ID)
	require.NoError(t, err)
	assert.True(t, cmp.Applicable)
	assert.True(t, cmp.OldGrossMonthly.Equal(money(100_000)))
	assert.True(t, cmp.NewGrossMonthly.Equal(money(125_000)))
	assert.InDelta(t, 25.0, cmp.PercentChange, 0.001)
}

// =============================================================================
// CATALOG ADMINISTRATION
// =============================================================================

func TestReplaceCatalog_InvalidReplacement_Refused(t *testing.T) {
	service, _, _ := newTestService(t)

	bad := testCatalog()
	bad.Components = append(bad.Components, comp.ComponentDefinition{
		Key: "extra_balance", Name: "Extra Balance",
		CalcType: comp.CalcBalance, Classification: comp.ClassEarning, Order: 9,
	})
	assert.ErrorIs(t, service.ReplaceCatalog(bad), comp.ErrMultipleBalanceComponents)

	// The working catalog is unchanged.
	assert.Len(t, service.Catalog().Components, 3)
}

func TestNewService_InvalidCatalog_Refused(t *testing.T) {
	bad := comp.Catalog{Components: []comp.ComponentDefinition{
		{Key: "x", Name: "X", CalcType: "nonsense", Classification: comp.ClassEarning},
	}}
	_, err := comp.NewService(store.NewMemory(), bad, nil)
	assert.ErrorIs(t, err, comp.ErrUnknownCalcType)
}
