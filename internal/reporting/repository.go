package reporting

import (
	"context"
	"time"

	"collections-platform/internal/calls"
)

const pageSize = 500

// StoreRepo reads call records for reporting through the call-log store,
// paging until a short page is returned.
type StoreRepo struct {
	Calls calls.Store
}

func (r StoreRepo) ListCalls(ctx context.Context, from, to time.Time, billID int64) ([]calls.Record, error) {
	var out []calls.Record
	for offset := 0; ; offset += pageSize {
		page, err := r.Calls.List(ctx, calls.ListFilter{
			BillID: billID,
			From:   from,
			To:     to,
			Limit:  pageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}
