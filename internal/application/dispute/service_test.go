package dispute

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/dispute"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/event"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/event/mocks"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/groupbuy"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/memory"
	"github.com/groupbuy-hub/groupbuy-hub/internal/testutil"
)

type fixture struct {
	svc       *Service
	store     *memory.Store
	clock     *testutil.Clock
	publisher *mocks.MockPublisher
	inst      *groupbuy.Instance
	buyer     user.Actor
	seller    user.Actor
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	st := memory.NewStore()
	clock := testutil.NewClock()

	f := &fixture{store: st, clock: clock, publisher: pub, buyer: testutil.Buyer(), seller: testutil.Seller()}
	f.inst = testutil.SeedInstance(t, st, clock, testutil.Buyer(), 1, 5)
	testutil.SeedParticipant(t, st, clock, f.inst, f.buyer)
	winner := testutil.SeedBid(t, st, f.inst, f.seller, 1000, clock.Now())
	f.inst.WinningBidID = &winner.BidID
	require.NoError(t, st.Repositories().Instances.Update(context.Background(), f.inst))

	f.svc = NewService(st, appAudit.NewService(st.Audit(), zerolog.Nop(), nil), pub, cfg, zerolog.Nop())
	f.svc.SetClock(clock.Now)
	return f
}

func (f *fixture) setStatus(t *testing.T, s groupbuy.Status) {
	t.Helper()
	f.inst.Status = s
	require.NoError(t, f.store.Repositories().Instances.Update(context.Background(), f.inst))
}

func (f *fixture) sellerNoShow() ReportRequest {
	return ReportRequest{
		InstanceID: f.inst.InstanceID,
		ReportedID: f.seller.UserID,
		Type:       dispute.ReportSellerNoShow,
		Content:    "seller did not deliver on the agreed date",
		Evidence:   []dispute.Evidence{{URL: "https://files.example/chat.png"}},
	}
}

func (f *fixture) report(t *testing.T) *dispute.Report {
	t.Helper()
	f.setStatus(t, groupbuy.StatusCompleted)
	rep, err := f.svc.CreateReport(context.Background(), f.buyer, f.sellerNoShow())
	require.NoError(t, err)
	return rep
}

func TestCreateReport_ReportabilityWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	_, err := f.svc.CreateReport(ctx, f.buyer, f.sellerNoShow())
	assert.True(t, errors.Is(err, errs.ErrNotReportable))

	f.setStatus(t, groupbuy.StatusCompleted)
	f.publisher.EXPECT().Publish(gomock.Any()).Do(func(e event.Event) {
		assert.Equal(t, event.ReportCreated, e.Type)
		assert.Equal(t, f.seller.UserID, e.Recipients[0])
	}).Times(1)

	rep, err := f.svc.CreateReport(ctx, f.buyer, f.sellerNoShow())
	require.NoError(t, err)
	assert.Equal(t, dispute.ReportPending, rep.Status)
	assert.Equal(t, 0, rep.EditCount)
}

func TestCreateReport_PartyRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.setStatus(t, groupbuy.StatusCancelled)
	f.publisher.EXPECT().Publish(gomock.Any()).AnyTimes()

	_, err := f.svc.CreateReport(ctx, testutil.Buyer(), f.sellerNoShow())
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized), "outsider")

	wrongType := f.sellerNoShow()
	wrongType.Type = dispute.ReportBuyerNoShow
	_, err = f.svc.CreateReport(ctx, f.buyer, wrongType)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	incomplete := f.buyer
	incomplete.ProfileComplete = false
	_, err = f.svc.CreateReport(ctx, incomplete, f.sellerNoShow())
	assert.True(t, errors.Is(err, errs.ErrProfileIncomplete))

	_, err = f.svc.CreateReport(ctx, f.seller, ReportRequest{
		InstanceID: f.inst.InstanceID,
		ReportedID: f.buyer.UserID,
		Type:       dispute.ReportBuyerNoShow,
		Content:    "buyer never picked up",
	})
	require.NoError(t, err)
}

func TestEditReport_SingleEdit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.publisher.EXPECT().Publish(gomock.Any()).AnyTimes()
	rep := f.report(t)

	_, err := f.svc.EditReport(ctx, f.seller, rep.ReportID, "not mine", nil)
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))

	edited, err := f.svc.EditReport(ctx, f.buyer, rep.ReportID, "first edit", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, edited.EditCount)

	_, err = f.svc.EditReport(ctx, f.buyer, rep.ReportID, "second edit", nil)
	assert.True(t, errors.Is(err, errs.ErrEditLimitExceeded))

	view, err := f.svc.GetReport(ctx, f.buyer, rep.ReportID)
	require.NoError(t, err)
	assert.Equal(t, "first edit", view.Content)
}

func TestCancelReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.publisher.EXPECT().Publish(gomock.Any()).AnyTimes()
	rep := f.report(t)

	cancelled, err := f.svc.CancelReport(ctx, f.buyer, rep.ReportID, "delivered late after all")
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)

	_, err = f.svc.CancelReport(ctx, f.buyer, rep.ReportID, "again")
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))

	_, err = f.svc.CreateObjection(ctx, f.seller, rep.ReportID, "too late", nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))

	stored, err := f.svc.GetReport(ctx, testutil.Admin(), rep.ReportID)
	require.NoError(t, err)
	assert.True(t, stored.Cancelled, "cancelled reports are retained")
}

func TestObjection_Flow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.publisher.EXPECT().Publish(gomock.Any()).AnyTimes()
	rep := f.report(t)
	admin := testutil.Admin()

	_, err := f.svc.CreateObjection(ctx, f.buyer, rep.ReportID, "I object", nil)
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized), "only the reported party")

	obj, err := f.svc.CreateObjection(ctx, f.seller, rep.ReportID, "I was there", nil)
	require.NoError(t, err)

	_, err = f.svc.CreateObjection(ctx, f.seller, rep.ReportID, "me again", nil)
	assert.True(t, errors.Is(err, errs.ErrDuplicateObjection))

	_, err = f.svc.EditObjection(ctx, f.seller, obj.ObjectionID, "I was there at 10am", nil)
	require.NoError(t, err)
	_, err = f.svc.EditObjection(ctx, f.seller, obj.ObjectionID, "third time", nil)
	assert.True(t, errors.Is(err, errs.ErrEditLimitExceeded))

	_, err = f.svc.AdminResolveObjection(ctx, f.buyer, obj.ObjectionID, dispute.ObjectionAccepted, "")
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))
	resolvedObj, err := f.svc.AdminResolveObjection(ctx, admin, obj.ObjectionID, dispute.ObjectionAccepted, "GPS log confirms")
	require.NoError(t, err)
	assert.NotNil(t, resolvedObj.ProcessedAt)

	resolved, err := f.svc.AdminResolve(ctx, admin, rep.ReportID, dispute.ReportRejected, "seller showed up")
	require.NoError(t, err)
	assert.Equal(t, dispute.ReportRejected, resolved.Status)
	assert.NotNil(t, resolved.ProcessedAt)

	view, err := f.svc.GetReport(ctx, f.seller, rep.ReportID)
	require.NoError(t, err)
	require.NotNil(t, view.Objection)
	assert.Equal(t, dispute.ObjectionAccepted, view.Objection.Status)

	_, err = f.svc.GetObjection(ctx, testutil.Buyer(), obj.ObjectionID)
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))
}

func TestCreateObjection_OnHoldPolicy(t *testing.T) {
	ctx := context.Background()
	for _, allow := range []bool{false, true} {
		f := newFixture(t, Config{AllowObjectionOnHold: allow})
		f.publisher.EXPECT().Publish(gomock.Any()).AnyTimes()
		rep := f.report(t)
		_, err := f.svc.AdminResolve(ctx, testutil.Admin(), rep.ReportID, dispute.ReportOnHold, "waiting for evidence")
		require.NoError(t, err)

		_, err = f.svc.CreateObjection(ctx, f.seller, rep.ReportID, "here is my side", nil)
		if allow {
			assert.NoError(t, err)
		} else {
			assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
		}
	}
}

func TestListReports_ScopedToParties(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.publisher.EXPECT().Publish(gomock.Any()).AnyTimes()
	f.report(t)

	mine, err := f.svc.ListReports(ctx, f.seller, dispute.ReportFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := f.svc.ListReports(ctx, testutil.Buyer(), dispute.ReportFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := f.svc.ListReports(ctx, testutil.Admin(), dispute.ReportFilter{InstanceID: &f.inst.InstanceID}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
