// Package briteverify is a client for the BriteVerify verification API.
//
// Single records (an email, a phone number, a street address or any mix of
// them) are verified in real time through the v1 API:
//
//	client, err := briteverify.New(os.Getenv("BV_API_KEY"))
//	if err != nil {
//		return err
//	}
//	res, err := client.VerifySingle(ctx, briteverify.ContactRecord{Email: "sales@validity.com"})
//
// Large batches go through the asynchronous v3 bulk API. A list is created
// with SubmitBulk, polled with GetBulkStatus or WaitForBulkJob until it is
// complete, and its results are read with GetBulkResults.
// RunBulkVerification chains the three steps.
//
// Failures are typed: *ValidationError, *HTTPError, *NotFoundError,
// *StateError, *RemoteJobError, *TimeoutError and *TransportError can all be
// matched with errors.As. A record that fails verification (an invalid
// mailbox, an undeliverable address) is a result, not an error.
package briteverify
