package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
)

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
	isPayer    bool
	isProgram  bool
}

// NewAccountMeta returns a writable AccountMeta.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta returns a readonly AccountMeta.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey: pub,
		IsSigner:  isSigner,
	}
}

// compareAccounts orders accounts the way the runtime expects them in a
// compiled message: payer, then signers before non-signers and writable
// before readonly within each, with invoked programs last. Ties are broken by
// key so compilation is deterministic.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
func compareAccounts(a, b AccountMeta) int {
	if rank, other := accountRank(a), accountRank(b); rank != other {
		return rank - other
	}
	return bytes.Compare(a.PublicKey, b.PublicKey)
}

func accountRank(a AccountMeta) int {
	switch {
	case a.isPayer:
		return 0
	case a.isProgram && !a.IsSigner && !a.IsWritable:
		return 5
	case a.IsSigner && a.IsWritable:
		return 1
	case a.IsSigner:
		return 2
	case a.IsWritable:
		return 3
	}
	return 4
}

// Instruction is an uncompiled program invocation.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// CompiledInstruction references accounts by their index in the message.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}
