package store_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/store"
)

func saveReconciled(t *testing.T, s *store.Store, b *models.Bookmark) {
	t.Helper()
	saveReconciledWithReport(t, s, b, models.ChangeReport{})
}

func saveReconciledWithReport(t *testing.T, s *store.Store, b *models.Bookmark, report models.ChangeReport) {
	t.Helper()
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.SaveReconciliationTx(ctx, tx, b, report)
	})
	require.NoError(t, err)
}
