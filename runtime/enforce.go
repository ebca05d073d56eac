package runtime

import (
	"fmt"

	"github.com/jacekv/minisol/pubkey"
)

// MaxAccountDataLen caps account data buffers.
const MaxAccountDataLen = 10 * 1024 * 1024

// enforce verifies the ownership rules after a program has run, by
// comparing each distinct instruction account against its pre-execution
// snapshot:
//
//   - executable accounts are immutable;
//   - data changes require the executing program to own the account;
//   - ownership reassignment requires the current owner, a writable,
//     non-executable account, and zeroed data;
//   - lamport debits require the owner; credits are unrestricted;
//   - any change requires writability;
//   - the instruction conserves the total lamports across its accounts.
//
// A violation voids the whole instruction; the ledger discards the working
// copies.
func enforce(programID pubkey.PublicKey, snapshots []viewSnapshot) error {
	var preTotal, postTotal uint64
	for i := range snapshots {
		snap := &snapshots[i]
		pre, post := snap.pre, snap.post
		preTotal += pre.Lamports
		postTotal += post.Lamports

		changed := pre.Lamports != post.Lamports ||
			pre.Owner != post.Owner ||
			pre.Executable != post.Executable ||
			!pre.DataEquals(post)
		if !changed {
			continue
		}

		if pre.Executable {
			return NewError(KindOwner, "RT-OWN-004",
				fmt.Sprintf("executable account %s is immutable", snap.key))
		}
		if post.Executable != pre.Executable {
			return NewError(KindOwner, "RT-OWN-005",
				fmt.Sprintf("account %s executable flag may not change", snap.key))
		}
		if !snap.writable {
			return NewError(KindPrivilege, "RT-PRIV-004",
				fmt.Sprintf("account %s modified without writable privilege", snap.key))
		}

		if post.Owner != pre.Owner {
			if programID != pre.Owner {
				return NewError(KindOwner, "RT-OWN-003",
					fmt.Sprintf("only owner %s may reassign account %s", pre.Owner, snap.key))
			}
			if !pre.IsZeroed() || !post.IsZeroed() {
				return NewError(KindOwner, "RT-OWN-002",
					fmt.Sprintf("account %s must hold zeroed data to change owner", snap.key))
			}
		} else if !pre.DataEquals(post) {
			if programID != pre.Owner {
				return NewError(KindOwner, "RT-OWN-001",
					fmt.Sprintf("program does not own modified account %s", snap.key))
			}
		}

		if len(post.Data) > MaxAccountDataLen {
			return NewError(KindState, "RT-STATE-001",
				fmt.Sprintf("account %s data exceeds %d bytes", snap.key, MaxAccountDataLen))
		}

		if post.Lamports < pre.Lamports && programID != pre.Owner {
			return NewError(KindFunds, "RT-FUNDS-001",
				fmt.Sprintf("program does not own debited account %s", snap.key))
		}
	}

	if preTotal != postTotal {
		return NewError(KindFunds, "RT-FUNDS-002",
			fmt.Sprintf("instruction changed total lamports: %d -> %d", preTotal, postTotal))
	}
	return nil
}
