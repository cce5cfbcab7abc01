// Package jwt issues and verifies typed, expiring session tokens signed with
// HS256.
//
// Every token carries a kind claim ("access" or "refresh"). Verify checks the
// signature first, then the kind, then the temporal claims, and collapses any
// failure to ErrInvalidToken so that callers cannot learn which check failed.
// A refresh token is never accepted where an access token is expected and
// vice versa.
//
// Tokens are stateless. There is no server-side revocation; expiry is the only
// invalidation path. Rotate exchanges a valid refresh token for a fresh pair,
// and callers should treat only the newest pair as canonical.
//
// Signing keys are looked up through a KeyProvider and every token is tagged
// with the key id in its "kid" header, which leaves room for rotating key
// material without touching the signing code. StaticKeys serves a single key.
//
// # Usage
//
//	keys, err := jwt.NewStaticKeys("k1", []byte(cfg.SigningKey))
//	if err != nil {
//		return err
//	}
//	svc, err := jwt.New(keys, jwt.WithIssuer("credkit"))
//	if err != nil {
//		return err
//	}
//
//	pair, err := svc.IssuePair(userID, jwt.WithEmail(email), jwt.WithRole("user"))
//	claims, err := svc.Verify(pair.AccessToken, jwt.KindAccess)
//
// Authenticate wraps an http.Handler, verifies the bearer token and stores the
// claims in the request context, where ClaimsFromContext finds them.
package jwt
