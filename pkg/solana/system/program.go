package system

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/tunegate/tunegate-server/pkg/solana"
)

// ProgramKey is the system program, which is the all-zero key.
var ProgramKey [32]byte

const (
	commandCreateAccount uint32 = iota
	commandAssign
	commandTransfer
)

const createAccountDataSize = 4 + 2*8 + ed25519.PublicKeySize

// CreateAccount returns an instruction that funds and allocates a new account
// owned by owner.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	//
	// CreateAccount { lamports: u64, space: u64, owner: Pubkey }
	data := make([]byte, createAccountDataSize)
	binary.LittleEndian.PutUint32(data, commandCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[4+8:], size)
	copy(data[4+2*8:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]
	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey[:]) {
		return nil, solana.ErrIncorrectProgram
	}
	if len(i.Data) < 4 || binary.LittleEndian.Uint32(i.Data) != commandCreateAccount {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != createAccountDataSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	v := &DecompiledCreateAccount{
		Funder:   m.Accounts[i.Accounts[0]],
		Address:  m.Accounts[i.Accounts[1]],
		Lamports: binary.LittleEndian.Uint64(i.Data[4:]),
		Size:     binary.LittleEndian.Uint64(i.Data[4+8:]),
		Owner:    make(ed25519.PublicKey, ed25519.PublicKeySize),
	}
	copy(v.Owner, i.Data[4+2*8:])

	return v, nil
}

// Transfer returns an instruction moving lamports between system accounts.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L81-L85
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data, commandTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}
