// Package resume stores user documents encrypted at rest.
//
// Uploaded bytes are sealed with a *secrets.Cipher before they reach a
// file.Storage; the storage key is generated server side and never derives
// from the uploaded file name. Metadata lives in a DocumentStore.
//
// Access rules:
//
//   - the owner and admins may read any document; anyone may read a public one
//   - the owner and admins may delete
//   - only the owner may change visibility
//
// Every successful download increments the access counter atomically in the
// store.
package resume
