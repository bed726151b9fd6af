// Package proxy implements the credential-rotating forwarding path.
//
// Every inbound request under the proxy prefix is buffered once into an
// InboundRequest and handed to the Executor, which decides which upstream
// credential to use:
//
//   - no credential presented: 401 "API key is missing", nothing is sent upstream
//   - a trusted user key: served from the pool with failover
//   - any other value: forwarded once as the caller's own upstream key
//
// # Failover
//
// For pool requests the active credentials are loaded and ranked once
// (fewest consecutive errors, then least usage). Each candidate is tried
// TriesPerCredential times in a row before the next one; the total attempt
// budget is TriesPerCredential times the pool size. Every attempt outcome is
// written to the credential store before the next attempt starts.
//
// A 2xx answer ends the loop. For buffered calls the body is read in full
// first, so a body that fails mid-read counts as a failed attempt. For
// streaming calls the open response is handed to the relay package.
//
// When the budget runs out the caller receives the last upstream failure
// unchanged: its status, its body and its content type. Transport errors
// appear as status 500 with the error text. An empty pool yields 500 "No
// available API keys" without any upstream call.
//
// # Key placement
//
// The credential is sent back in the slot the caller used (see ExtractKey).
// Bearer tokens are the exception: the upstream API does not accept bearer
// API keys, so those credentials travel in the key query parameter. All
// inbound credential slots are stripped before the selected credential is
// added.
package proxy
