// Package upstream sends single attempts to the upstream generative-AI API.
//
// The client owns connection pooling and the per-attempt deadline. It does
// not retry and does not interpret status codes; both are decided by the
// proxy's failover loop.
package upstream
