package memory

import (
	"testing"
	"time"

	"tesouraria/internal/storage"
	"tesouraria/internal/storage/ledgertest"
)

func TestStore(t *testing.T) {
	ledgertest.Run(t, func(_ *testing.T, loc *time.Location) storage.Ledger {
		return New(loc)
	})
}
