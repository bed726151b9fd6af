// Package health implements the liveness and readiness probes.
//
// Liveness only says the process is running. Readiness runs the registered
// checks, typically StoreCheck and PoolCheck, so that a proxy whose store is
// unreachable or whose pool is empty is taken out of rotation:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("store", health.StoreCheck(store))
//	checker.RegisterCheck("pool", health.PoolCheck(store))
//	router.Get("/health", checker.LivenessHandler())
//	router.Get("/ready", checker.ReadinessHandler())
package health
