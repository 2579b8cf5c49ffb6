/*
Package vault stores application passwords in a single encrypted file
unlocked by a master password.

Encryption

A 256-bit key is derived from the master password with scrypt, using a
per-file random salt and the cost parameters recorded in the header. The
entries are encrypted with AES-256 in CBC mode with PKCS#7 padding under a
random IV that is regenerated on every write. An HMAC-SHA-512 keyed with the
same derived key covers the header and the ciphertext, and is checked before
anything is decrypted.

Binary Format

All integers are big endian.

	offset  length  field
	0       4       version (currently 2)
	4       1       scrypt log2(N)
	5       4       scrypt r
	9       4       scrypt p
	13      32      salt
	45      16      IV
	61      64      HMAC-SHA-512 over version || log2(N) || r || p || IV || salt || ciphertext
	125     ...     ciphertext

The plaintext is a JSON document:

	{"passwords": [{"name": "...", "username": "...", "password": "...",
	                "created_at": 0, "updated_at": 0}]}

Secrets

The derived key and the master password are kept in memguard locked buffers
and entry passwords in secret.String values. Store.Close wipes all of them.
*/
package vault
