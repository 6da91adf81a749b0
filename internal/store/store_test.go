package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"DripSend/internal/models"
)

func TestBuildUpdate(t *testing.T) {
	t.Parallel()

	t.Run("single field", func(t *testing.T) {
		t.Parallel()
		query, args, err := buildUpdate("t1", map[string]any{
			"status": models.StatusProcessing,
		})
		require.NoError(t, err)
		require.Equal(t, "UPDATE scheduled_emails SET status=$1 WHERE id=$2", query)
		require.Equal(t, []any{models.StatusProcessing, "t1"}, args)
	})

	t.Run("multiple fields in deterministic order", func(t *testing.T) {
		t.Parallel()
		at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		query, args, err := buildUpdate("t2", map[string]any{
			"status":       models.StatusSent,
			"sent_count":   7,
			"completed_at": at,
		})
		require.NoError(t, err)
		require.Equal(t,
			"UPDATE scheduled_emails SET completed_at=$1, sent_count=$2, status=$3 WHERE id=$4",
			query)
		require.Equal(t, []any{at, 7, models.StatusSent, "t2"}, args)
	})

	t.Run("rejects non-updatable column", func(t *testing.T) {
		t.Parallel()
		_, _, err := buildUpdate("t3", map[string]any{
			"sender_password": "sneaky",
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "not updatable")
	})

	t.Run("rejects empty field set", func(t *testing.T) {
		t.Parallel()
		_, _, err := buildUpdate("t4", map[string]any{})
		require.Error(t, err)
	})
}
