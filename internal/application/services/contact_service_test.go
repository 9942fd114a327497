package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/events"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	apperrors "github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
)

func strp(s string) *string { return &s }

func TestContactService_Create(t *testing.T) {
	repo := newMemContacts()
	bus := &recordingBus{}
	svc := NewContactService(repo, bus)
	ctx := context.Background()

	c, err := svc.Create(ctx, ContactInput{
		FirstName: strp(" Grace "),
		LastName:  strp("Hopper"),
		Email:     strp("Grace@Navy.MIL"),
		Phone:     strp("(555) 010-2030"),
		Source:    strp("referral"),
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", c.FirstName)
	assert.Equal(t, "grace@navy.mil", *c.Email)
	assert.Equal(t, "+15550102030", *c.Phone)
	assert.Equal(t, constants.ContactTypeLead, c.Type)
	assert.Equal(t, "u1", *c.OwnerID)

	created := bus.ofType(events.ContactCreated)
	require.Len(t, created, 1)
	assert.Equal(t, events.ContactCreatedPayload{ContactID: c.ID, Source: "referral"}, created[0].Payload)

	tests := []struct {
		name string
		in   ContactInput
	}{
		{"no name", ContactInput{Email: strp("a@b.com")}},
		{"bad email", ContactInput{FirstName: strp("A"), Email: strp("not-an-email")}},
		{"bad phone", ContactInput{FirstName: strp("A"), Phone: strp("call me")}},
		{"bad type", ContactInput{FirstName: strp("A"), Type: strp("prospect")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in, "u1")
			assert.True(t, apperrors.IsValidation(err), "unexpected error: %v", err)
		})
	}
}

func TestContactService_UpdateIsPartial(t *testing.T) {
	svc := NewContactService(newMemContacts(), &recordingBus{})
	ctx := context.Background()
	c, err := svc.Create(ctx, ContactInput{FirstName: strp("Ada"), LastName: strp("Lovelace"), Email: strp("ada@example.com")}, "u1")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, c.ID, ContactInput{Type: strp(constants.ContactTypeClient)})
	require.NoError(t, err)
	assert.Equal(t, constants.ContactTypeClient, updated.Type)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "ada@example.com", *updated.Email)

	// An empty string clears an optional field
	updated, err = svc.Update(ctx, c.ID, ContactInput{Email: strp("")})
	require.NoError(t, err)
	assert.Nil(t, updated.Email)

	_, err = svc.Update(ctx, "missing", ContactInput{})
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, svc.Delete(ctx, c.ID))
	_, err = svc.Get(ctx, c.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestContactService_FindOrCreateByChannel(t *testing.T) {
	repo := newMemContacts()
	bus := &recordingBus{}
	svc := NewContactService(repo, bus)
	ctx := context.Background()

	c, created, err := svc.FindOrCreateByChannel(ctx, constants.ChannelMessenger, "psid-123456", "Sam Spade")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Sam", c.FirstName)
	assert.Equal(t, "Spade", c.LastName)
	assert.Equal(t, "psid-123456", *c.MessengerPSID)
	assert.Nil(t, c.OwnerID, "system-created leads have no owner")
	assert.Equal(t, constants.ChannelMessenger, *c.Source)

	again, created, err := svc.FindOrCreateByChannel(ctx, constants.ChannelMessenger, "psid-123456", "Other Name")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c.ID, again.ID)

	sms, created, err := svc.FindOrCreateByChannel(ctx, constants.ChannelSMS, "555-010-9999", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "+15550109999", *sms.Phone)
	assert.Equal(t, "SMS", sms.FirstName)
	assert.Equal(t, "9999", sms.LastName)

	_, _, err = svc.FindOrCreateByChannel(ctx, constants.ChannelSMS, "n/a", "")
	assert.True(t, apperrors.IsValidation(err))

	assert.Len(t, bus.ofType(events.ContactCreated), 2)
}

func TestContactService_FindByEmailOrPhone(t *testing.T) {
	svc := NewContactService(newMemContacts(), &recordingBus{})
	ctx := context.Background()
	byEmail, err := svc.Create(ctx, ContactInput{FirstName: strp("E"), Email: strp("e@example.com")}, "")
	require.NoError(t, err)
	byPhone, err := svc.Create(ctx, ContactInput{FirstName: strp("P"), Phone: strp("+1 555 010 1111")}, "")
	require.NoError(t, err)

	got, err := svc.FindByEmailOrPhone(ctx, "E@EXAMPLE.com", "")
	require.NoError(t, err)
	assert.Equal(t, byEmail.ID, got.ID)

	got, err = svc.FindByEmailOrPhone(ctx, "unknown@example.com", "5550101111")
	require.NoError(t, err)
	assert.Equal(t, byPhone.ID, got.ID)

	got, err = svc.FindByEmailOrPhone(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, first, last string
	}{
		{"Jane Q Doe", "Jane", "Q Doe"},
		{"  Cher ", "Cher", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := splitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}
