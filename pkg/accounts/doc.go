// Package accounts manages the pool of platform accounts used for
// authenticated requests.
//
// A Pool rotates round-robin over accounts whose status is working and writes
// the whole list back to its Store after every change. Status only moves away
// from working during a run; an operator resets it with the accounts command.
//
// Four stores are available: a plain JSON file, an AES-GCM encrypted file, the
// system keychain and a SQLite database.
package accounts
