package token

import (
	"bytes"
	"crypto/ed25519"
	"math"

	"github.com/pkg/errors"

	"github.com/tunegate/tunegate-server/pkg/solana"
	"github.com/tunegate/tunegate-server/pkg/solana/system"
)

// ProgramKey is the address of the token program that should be used.
//
// Current key: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

type Command byte

const (
	CommandInitializeMint Command = iota
	CommandInitializeAccount
	CommandInitializeMultisig
	CommandTransfer

	CommandUnknown = Command(math.MaxUint8)
)

func GetCommand(m solana.Message, index int) (Command, error) {
	if index >= len(m.Instructions) {
		return CommandUnknown, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return CommandUnknown, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 {
		return CommandUnknown, errors.New("token instruction missing data")
	}

	return Command(i.Data[0]), nil
}

// InitializeMint returns an instruction that initializes a freshly allocated
// mint account. A nil freezeAuthority leaves the mint without one.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L23-L38
func InitializeMint(mint, mintAuthority, freezeAuthority ed25519.PublicKey, decimals byte) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint to initialize.
	//   1. `[]` Rent sysvar
	//
	// Data: command, decimals, mint_authority, COption<freeze_authority>
	data := make([]byte, 0, 3+2*ed25519.PublicKeySize)
	data = append(data, byte(CommandInitializeMint), decimals)
	data = append(data, mintAuthority...)
	if len(freezeAuthority) > 0 {
		data = append(data, 1)
		data = append(data, freezeAuthority...)
	} else {
		data = append(data, 0)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

type DecompiledInitializeMint struct {
	Mint            ed25519.PublicKey
	Decimals        byte
	MintAuthority   ed25519.PublicKey
	FreezeAuthority ed25519.PublicKey
}

func DecompileInitializeMint(m solana.Message, index int) (*DecompiledInitializeMint, error) {
	cmd, err := GetCommand(m, index)
	if err != nil {
		return nil, err
	}
	if cmd != CommandInitializeMint {
		return nil, solana.ErrIncorrectInstruction
	}

	i := m.Instructions[index]
	if len(i.Accounts) != 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if !bytes.Equal(system.RentSysVar, m.Accounts[i.Accounts[1]]) {
		return nil, errors.Errorf("invalid rent program")
	}

	const minSize = 2 + ed25519.PublicKeySize + 1
	if len(i.Data) < minSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	v := &DecompiledInitializeMint{
		Mint:          m.Accounts[i.Accounts[0]],
		Decimals:      i.Data[1],
		MintAuthority: ed25519.PublicKey(i.Data[2 : 2+ed25519.PublicKeySize]),
	}

	switch i.Data[minSize-1] {
	case 0:
	case 1:
		if len(i.Data) != minSize+ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
		}
		v.FreezeAuthority = ed25519.PublicKey(i.Data[minSize:])
	default:
		return nil, errors.Errorf("invalid freeze authority option: %d", i.Data[minSize-1])
	}

	return v, nil
}
