// Package jwt authenticates API requests with HS256 bearer tokens issued by the
// external identity provider.
//
// The token subject must be the user's UUID. The middleware stores the parsed
// claims in the request context:
//
//	r.Use(jwt.Middleware(svc))
//
//	userID, ok := jwt.UserID(r.Context())
package jwt
