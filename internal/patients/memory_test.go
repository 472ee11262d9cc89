package patients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectoryCreateAndVerify(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	created, err := dir.Create(ctx, "Marie Tremblay", "514-555-0100", "1990-05-01", "marie@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1-514-555-0100", created.Phone)
	assert.Equal(t, StatusActive, created.Status)
	assert.NotEmpty(t, created.ID)

	found, err := dir.FindByPhoneAndDOB(ctx, "1-514-555-0100", "1990-05-01")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Marie Tremblay", found.Name)
	assert.NotNil(t, found.LastVisit)
}

func TestMemoryDirectoryExactMatchOnly(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	_, err := dir.Create(ctx, "Marie Tremblay", "514-555-0100", "1990-05-01", "")
	require.NoError(t, err)

	// Phone matches, DOB does not.
	_, err = dir.FindByPhoneAndDOB(ctx, "514-555-0100", "1990-05-02")
	assert.ErrorIs(t, err, ErrNotFound)

	// DOB matches, phone does not.
	_, err = dir.FindByPhoneAndDOB(ctx, "514-555-0199", "1990-05-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDirectoryMissingDOBNeverMatches(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	_, err := dir.Create(ctx, "Jean Roy", "514-555-0111", "", "")
	require.NoError(t, err)

	_, err = dir.FindByPhoneAndDOB(ctx, "514-555-0111", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDirectoryDuplicatePhone(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	_, err := dir.Create(ctx, "Marie Tremblay", "514-555-0100", "1990-05-01", "")
	require.NoError(t, err)

	// Same subscriber number in a different format is still a duplicate.
	_, err = dir.Create(ctx, "Someone Else", "(514) 555 0100", "1985-01-01", "")
	assert.ErrorIs(t, err, ErrDuplicatePhone)
}

func TestMemoryDirectoryUpdateField(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	p, err := dir.Create(ctx, "Jean Roy", "514-555-0111", "", "")
	require.NoError(t, err)

	require.NoError(t, dir.UpdateField(ctx, p.ID, FieldDateOfBirth, "1980-02-02"))
	require.NoError(t, dir.UpdateField(ctx, p.ID, FieldEmail, "jean@example.com"))

	found, err := dir.FindByPhoneAndDOB(ctx, "514-555-0111", "1980-02-02")
	require.NoError(t, err)
	assert.Equal(t, "jean@example.com", found.Email)

	assert.ErrorIs(t, dir.UpdateField(ctx, p.ID, "name", "nope"), ErrUnknownField)
	assert.ErrorIs(t, dir.UpdateField(ctx, "missing", FieldEmail, "x"), ErrNotFound)
}

func TestMemoryDirectoryAppointmentHistory(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	p, err := dir.Create(ctx, "Jean Roy", "514-555-0111", "1980-02-02", "")
	require.NoError(t, err)

	dir.RecordAppointment(p.ID, "appt-1")
	dir.RecordAppointment(p.ID, "appt-2")

	ids, err := dir.AppointmentHistory(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"appt-2", "appt-1"}, ids)

	one, err := dir.AppointmentHistory(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"appt-2"}, one)
}
