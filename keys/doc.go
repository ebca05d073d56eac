// Package keys provides wallet keypairs and a local filesystem keystore.
//
// Stable:
//   - Keypair construction, signing, and the JSON secret-key file format
//     (an array of 64 bytes, seed followed by public key).
//   - Deterministic sublabel seed derivation.
//
// Experimental:
//   - The filesystem-backed KeyStore. It is a local-first convenience for
//     the CLI and not a long-term storage contract.
package keys
