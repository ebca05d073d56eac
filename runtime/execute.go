package runtime

import (
	"fmt"

	"github.com/jacekv/minisol/account"
	"github.com/jacekv/minisol/pubkey"
)

// ExecuteInstruction runs one top-level instruction. Signer privileges are
// checked against the transaction's verified signatures; the instruction's
// effects stay in the working copies until the caller commits them.
func (tx *TxContext) ExecuteInstruction(ix Instruction) error {
	for _, meta := range ix.Accounts {
		if !meta.IsSigner {
			continue
		}
		if _, ok := tx.signers[meta.PublicKey]; !ok {
			return NewError(KindPrivilege, "RT-PRIV-001",
				fmt.Sprintf("missing signature for %s", meta.PublicKey))
		}
	}
	return executeInstruction(tx, ix, 1, nil)
}

func executeInstruction(tx *TxContext, ix Instruction, depth int, pdaSigners map[pubkey.PublicKey]struct{}) error {
	prog, ok := Lookup(ix.ProgramID)
	if !ok {
		return NewError(KindProgram, "RT-PROG-001",
			fmt.Sprintf("unknown program %s", ix.ProgramID))
	}

	views := make([]*AccountView, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		views = append(views, &AccountView{
			Key:        meta.PublicKey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			acct:       tx.Account(meta.PublicKey),
		})
	}

	pre := snapshotViews(views)

	ic := &InvokeContext{
		ProgramID:  ix.ProgramID,
		tx:         tx,
		views:      views,
		data:       ix.Data,
		depth:      depth,
		pdaSigners: pdaSigners,
	}

	tx.logs.pushf("Program %s invoke [%d]", ix.ProgramID, depth)
	if err := prog.Process(ic); err != nil {
		tx.logs.pushf("Program %s failed: %v", ix.ProgramID, err)
		return WrapError(KindOf(err), RuleID(err),
			fmt.Sprintf("program %s failed: %v", prog.Name, err), err)
	}
	if err := enforce(prog.ID, pre); err != nil {
		tx.logs.pushf("Program %s failed: %v", ix.ProgramID, err)
		return err
	}
	tx.logs.pushf("Program %s success", ix.ProgramID)
	return nil
}

type viewSnapshot struct {
	key pubkey.PublicKey
	pre *account.Account
	// writable is the union across duplicate metas for the same account.
	writable bool
	post     *account.Account
}

// snapshotViews clones the pre-execution state of each distinct account.
// Duplicate metas share a working copy, so they share a snapshot too.
func snapshotViews(views []*AccountView) []viewSnapshot {
	index := make(map[pubkey.PublicKey]int, len(views))
	out := make([]viewSnapshot, 0, len(views))
	for _, v := range views {
		if i, ok := index[v.Key]; ok {
			out[i].writable = out[i].writable || v.IsWritable
			continue
		}
		index[v.Key] = len(out)
		out = append(out, viewSnapshot{key: v.Key, pre: v.acct.Clone(), writable: v.IsWritable, post: v.acct})
	}
	return out
}
