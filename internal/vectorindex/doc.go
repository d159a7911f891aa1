// Package vectorindex holds the in-memory vector index: (embedding, chunk)
// pairs searched by brute-force similarity.
//
// Deleting a document means rebuilding the index from the remaining corpus
// and swapping it in with Replace. DropDocument exists only for when that
// rebuild cannot finish.
package vectorindex
