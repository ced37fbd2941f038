// Package auth implements the web login handshake.
//
// Passwords are never sent in clear: Encryptor seals them with a one-time
// AES-GCM key that is itself wrapped for the platform's current public key,
// producing the "#PWD_INSTAGRAM_BROWSER" string the login form expects. Both
// the public key and the csrf token come from the shared data document, with
// one fallback to a mirror.
package auth
