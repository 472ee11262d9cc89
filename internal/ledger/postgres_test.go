package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSinkWritesBatchInOneTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transcript_entries`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO metrics`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO agent_transfers`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sink := NewPostgresSink(db)
	err = sink.Write(context.Background(), []Entry{
		Transcript("sess-1", "greeter", SpeakerCaller, "hello"),
		Metric("sess-1", "turn_latency_ms", 120),
		Transfer("sess-1", "greeter", "patient_identification", "service request"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkSessionLifecycle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sessions SET closed_at`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sink := NewPostgresSink(db)
	err = sink.Write(context.Background(), []Entry{
		SessionStarted("sess-1", "room-1"),
		SessionClosed("sess-1"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO transcript_entries`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	sink := NewPostgresSink(db)
	err = sink.Write(context.Background(), []Entry{
		Transcript("sess-1", "greeter", SpeakerCaller, "hello"),
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkTranscript(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"session_id", "at", "role", "speaker", "text"}).
		AddRow("sess-1", at, "greeter", SpeakerCaller, "hello").
		AddRow("sess-1", at.Add(time.Second), "greeter", SpeakerAssistant, "hi there")

	mock.ExpectQuery(`FROM transcript_entries`).
		WithArgs("sess-1").
		WillReturnRows(rows)

	sink := NewPostgresSink(db)
	got, err := sink.Transcript(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, SpeakerAssistant, got[1].Speaker)
}

func TestPostgresSinkEmptyBatchIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink := NewPostgresSink(db)
	require.NoError(t, sink.Write(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
