package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/auth"
	"github.com/stretchr/testify/assert"
)

func TestCheckPayoutAmount(t *testing.T) {
	tests := []struct {
		name      string
		amount    int64
		available int64
		kind      apperror.Kind
	}{
		{"within balance", 2_000_000, 3_000_000, ""},
		{"exact balance", 3_000_000, 3_000_000, ""},
		{"over balance", 5_000_000, 3_000_000, apperror.KindBusinessRule},
		{"second request against hold", 2_000_000, 1_000_000, apperror.KindBusinessRule},
		{"negative balance", 1, -500, apperror.KindBusinessRule},
		{"zero amount", 0, 3_000_000, apperror.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkPayoutAmount(idr(tt.amount), idr(tt.available))
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
}

func TestPayoutService_RoleChecksRunBeforeStorage(t *testing.T) {
	svc := NewPayoutService(nil, nil, nil)
	ctx := context.Background()
	customer := auth.Actor{UserID: uuid.New(), Role: auth.RoleCustomer}
	owner := auth.Actor{UserID: uuid.New(), Role: auth.RoleAdminKos}

	_, err := svc.Request(ctx, customer, PayoutRequestInput{Amount: idr(1)})
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	_, err = svc.Request(ctx, owner, PayoutRequestInput{Amount: idr(0)})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.Approve(ctx, owner, uuid.New(), nil, "")
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	_, err = svc.Reject(ctx, auth.Actor{Role: auth.RoleSuperAdmin}, uuid.New(), "  ")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.Complete(ctx, auth.Actor{Role: auth.RoleSuperAdmin}, uuid.New(), nil)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.List(ctx, customer, PayoutFilter{})
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
}

func TestLedgerService_Authorization(t *testing.T) {
	svc := NewLedgerService(nil)
	ctx := context.Background()
	owner := auth.Actor{UserID: uuid.New(), Role: auth.RoleAdminKos}

	_, err := svc.ComputeBalance(ctx, owner, uuid.New())
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	_, err = svc.ComputeBalance(ctx, auth.Actor{Role: auth.RoleSuperAdmin}, uuid.Nil)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.ComputeBalance(ctx, auth.Actor{Role: auth.RoleCustomer}, uuid.Nil)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
}
