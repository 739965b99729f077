package domain

import "context"

// Uploader reports paid orders to the upstream as sales.
type Uploader interface {
	// Upload sends one order upstream, creating or updating the remote
	// sale. It records the outcome and reports it; it never returns an
	// error so a failed report cannot break a checkout.
	Upload(ctx context.Context, orderID int64) *Report
}
