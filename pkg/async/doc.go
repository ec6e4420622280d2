// Package async runs a function in the background and exposes its result
// as a Future.
//
//	f := async.Go(ctx, func(ctx context.Context) (*Receipt, error) {
//		return orchestrator.Purchase(ctx)
//	})
//	select {
//	case <-f.Done():
//		receipt, err := f.Await(ctx)
//	case <-time.After(wait):
//		// still running; check f.Completed() later
//	}
//
// Panics inside the function are recovered and reported as ErrPanicked.
package async
