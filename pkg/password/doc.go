// Package password implements one-way credential hashing with Argon2id.
//
// Digests are encoded in the PHC string format so that every digest carries
// its own algorithm tag, cost parameters and salt:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
//
// Hash is non-deterministic (a fresh random salt per call). Verify never
// returns an error; a malformed digest, an unknown algorithm and a wrong
// secret all simply yield false. The final comparison uses crypto/subtle, so
// the running time does not depend on where the derived keys differ.
//
// Digests produced by bcrypt can optionally be verified too, which allows
// accounts migrated from bcrypt-based systems to log in and be rehashed
// (see Hasher.NeedsRehash).
//
// # Usage
//
//	h, err := password.New()
//	if err != nil {
//		return err
//	}
//	digest, err := h.Hash("correct horse battery staple")
//	if err != nil {
//		return err
//	}
//	ok := h.Verify("correct horse battery staple", digest) // true
//
// Cost parameters are configurable with WithParams; New rejects a set that
// Argon2id cannot use. Changing them does not invalidate existing digests
// because Verify reads the parameters from the digest itself.
package password
