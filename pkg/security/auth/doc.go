/*
Package auth decides which callers are trusted.

A UserKeyValidator holds the user keys configured with USER_KEYS or
auth.user_keys. A caller presenting one of them is served from the
credential pool; any other presented value is forwarded as its own upstream
credential. The same keys guard the admin API through HTTP basic auth:

	validator := auth.NewUserKeyValidator(cfg.Auth.UserKeys)
	admin := auth.NewBasicAuthMiddleware(validator)
	router.With(admin.Handle).Get("/admin/keys", listKeys)

The basic-auth username is ignored and the password is checked against the
user keys. Failed attempts get a 401 with a Basic challenge. Key values are
never logged.
*/
package auth
