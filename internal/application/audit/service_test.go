package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/errs"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/memory"
)

func TestService_RecordSignsAndQueries(t *testing.T) {
	ctx := context.Background()
	repo := &memory.AuditRepository{}
	svc := NewService(repo, zerolog.Nop(), []byte("secret"))
	admin := user.Actor{UserID: uuid.New(), Role: user.RoleAdmin}
	buyer := user.Actor{UserID: uuid.New(), Role: user.RoleBuyer}
	entity := uuid.New()

	svc.Record(buyer, audit.EntityGroupPurchase, entity, audit.ActionJoin, "", nil)
	svc.Flush()

	_, err := svc.Query(ctx, buyer, QueryParams{})
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))

	logs, err := svc.Query(ctx, admin, QueryParams{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, buyer.ActorString(), logs[0].Actor)
	assert.NotEmpty(t, logs[0].Signature)

	res, err := svc.VerifyIntegrity(ctx, admin, logs[0].AuditID)
	require.NoError(t, err)
	assert.True(t, res.Verified)

	_, err = svc.VerifyIntegrity(ctx, admin, uuid.New())
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestService_LogSyncRejectsIncompleteEntry(t *testing.T) {
	svc := NewService(&memory.AuditRepository{}, zerolog.Nop(), nil)
	err := svc.LogSync(context.Background(), &audit.Entry{Action: audit.ActionCreate})
	assert.Error(t, err)
}

func TestService_RecordRiskLevels(t *testing.T) {
	admin := user.Actor{UserID: uuid.New(), Role: user.RoleAdmin}
	seller := user.Actor{UserID: uuid.New(), Role: user.RoleSeller}

	tests := []struct {
		name   string
		actor  user.Actor
		action audit.Action
		want   audit.RiskLevel
	}{
		{"seller cancel", seller, audit.ActionCancel, audit.RiskLevelLow},
		{"admin edit", admin, audit.ActionEdit, audit.RiskLevelMedium},
		{"admin cancel", admin, audit.ActionCancel, audit.RiskLevelHigh},
		{"admin resolve", admin, audit.ActionResolve, audit.RiskLevelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&memory.AuditRepository{}, zerolog.Nop(), nil)
			svc.Record(tt.actor, audit.EntityGroupPurchase, uuid.New(), tt.action, "reason", nil)
			svc.Flush()

			logs, err := svc.Query(context.Background(), admin, QueryParams{})
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, tt.want, logs[0].RiskLevel)
		})
	}
}
