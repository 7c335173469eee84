package services

import (
	"context"
	"errors"
	"testing"

	"financefam/internal/core"
	"financefam/internal/storage/memory"
)

func newSavings() (*SavingsService, *memory.Store, *recordingPublisher) {
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewSavingsService(store, pub, NewValidator())
	svc.now = fixedNow
	svc.newID = seqIDs("sv")
	return svc, store, pub
}

func TestSavingsService_GetSavingsSynthesizesZero(t *testing.T) {
	svc, store, _ := newSavings()

	sv, err := svc.GetSavings(context.Background(), userAna.ID)
	if err != nil {
		t.Fatalf("GetSavings() error = %v", err)
	}
	if sv.UserID != userAna.ID || sv.Amount.Cents != 0 || sv.History == nil {
		t.Errorf("zero record = %+v", sv)
	}
	if _, err := store.GetSavings(context.Background(), userAna.ID); !errors.Is(err, core.ErrNotFound) {
		t.Error("reading savings must not persist a record")
	}
}

func TestSavingsService_UpdateSavings(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newSavings()
	sess := userSession(userAna)

	_, err := svc.UpdateSavings(ctx, sess, userAna.ID, BalanceInput{Amount: cents(100), Direction: core.Withdraw})
	if !errors.Is(err, core.ErrInsufficientBalance) || domainMessage(err) != MsgSavingsInsufficient {
		t.Fatalf("withdraw from empty savings error = %v", err)
	}
	if _, err := store.GetSavings(ctx, userAna.ID); !errors.Is(err, core.ErrNotFound) {
		t.Error("failed first withdrawal must not create a record")
	}

	if _, err := svc.UpdateSavings(ctx, sess, userAna.ID, BalanceInput{Amount: cents(5000), Direction: core.Deposit}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	sv, err := svc.UpdateSavings(ctx, sess, userAna.ID, BalanceInput{Amount: cents(2000), Direction: core.Withdraw, Observation: "shoes"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if sv.Amount.Cents != 3000 || len(sv.History) != 2 || sv.History[1].Observation != "shoes" {
		t.Errorf("savings = %+v", sv)
	}
	if replayHistory(sv.History) != sv.Amount {
		t.Error("balance does not match history")
	}
	if ev := pub.Events(); len(ev) != 2 || ev[1].Type != core.EventSavingsUpdated {
		t.Errorf("events = %+v", ev)
	}
}

func TestSavingsService_ActorIgnoresAdmin(t *testing.T) {
	tests := []struct {
		name string
		sess core.Session
		want string
	}{
		{"user", userSession(userAna), "Ana"},
		{"admin only", adminSession(adminRoot), core.UnknownActor},
		{"no session", core.Session{}, core.UnknownActor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newSavings()
			sv, err := svc.UpdateSavings(context.Background(), tt.sess, userAna.ID, BalanceInput{Amount: cents(1), Direction: core.Deposit})
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if sv.History[0].Actor != tt.want {
				t.Errorf("actor = %q, want %q", sv.History[0].Actor, tt.want)
			}
		})
	}
}

func TestSavingsService_RecentSavingsHistory(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSavings()
	for i := int64(1); i <= 7; i++ {
		if _, err := svc.UpdateSavings(ctx, userSession(userAna), userAna.ID, BalanceInput{Amount: cents(i), Direction: core.Deposit}); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := svc.RecentSavingsHistory(ctx, userAna.ID, RecentHistorySize)
	if err != nil {
		t.Fatalf("RecentSavingsHistory() error = %v", err)
	}
	if len(recent) != 5 || recent[0].Amount.Cents != 7 || recent[4].Amount.Cents != 3 {
		t.Errorf("recent = %+v", recent)
	}

	empty, _ := svc.RecentSavingsHistory(ctx, userBruno.ID, RecentHistorySize)
	if len(empty) != 0 {
		t.Errorf("history of a user without savings = %+v", empty)
	}
}

func TestSavingsService_DepositsStopAtBalanceLimit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newSavings()
	sess := userSession(userAna)

	for i := 0; i < 2; i++ {
		if _, err := svc.UpdateSavings(ctx, sess, userAna.ID, BalanceInput{Amount: cents(core.MaxCents / 2), Direction: core.Deposit}); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}
	_, err := svc.UpdateSavings(ctx, sess, userAna.ID, BalanceInput{Amount: cents(1), Direction: core.Deposit})
	if !errors.Is(err, core.ErrBalanceLimit) {
		t.Fatalf("deposit past the limit error = %v", err)
	}
	_, err = svc.UpdateSavings(ctx, sess, userAna.ID, BalanceInput{Amount: cents(core.MaxCents + 1), Direction: core.Deposit})
	if !errors.Is(err, core.ErrAmountTooLarge) {
		t.Fatalf("oversized deposit error = %v", err)
	}

	sv, _ := svc.GetSavings(ctx, userAna.ID)
	if sv.Amount.Cents != core.MaxCents || len(sv.History) != 2 || replayHistory(sv.History) != sv.Amount {
		t.Fatalf("savings after rejected deposits = %+v", sv)
	}
}
