package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"slices"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

// SignatureFromBase58 parses a base58 encoded transaction signature.
func SignatureFromBase58(encoded string) (Signature, error) {
	var sig Signature

	decoded, err := base58.Decode(encoded)
	if err != nil {
		return sig, errors.Wrap(err, "invalid base58 signature")
	}
	if len(decoded) != len(sig) {
		return sig, errors.Errorf("invalid signature length: %d", len(decoded))
	}

	copy(sig[:], decoded)
	return sig, nil
}

type MessageVersion uint8

const (
	MessageVersionLegacy MessageVersion = iota
	MessageVersion0
)

func (v MessageVersion) String() string {
	switch v {
	case MessageVersionLegacy:
		return "legacy"
	case MessageVersion0:
		return "v0"
	}
	return "unknown"
}

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

// MessageAddressTableLookup references accounts loaded from an on-chain
// address lookup table. Only v0 messages carry them. They're kept verbatim
// so that externally built transactions survive a decode/sign/encode cycle.
type MessageAddressTableLookup struct {
	PublicKey       ed25519.PublicKey
	WritableIndexes []byte
	ReadonlyIndexes []byte
}

type Message struct {
	version             MessageVersion
	Header              Header
	Accounts            []ed25519.PublicKey
	RecentBlockhash     Blockhash
	Instructions        []CompiledInstruction
	AddressTableLookups []MessageAddressTableLookup
}

// Version returns the wire version of the message.
func (m Message) Version() MessageVersion {
	return m.version
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles a legacy transaction paid for by payer.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	accounts := []AccountMeta{
		{
			PublicKey:  payer,
			IsSigner:   true,
			IsWritable: true,
			isPayer:    true,
		},
	}

	for _, i := range instructions {
		accounts = append(accounts, AccountMeta{
			PublicKey: i.Program,
			isProgram: true,
		})
		accounts = append(accounts, i.Accounts...)
	}

	// Payer first, then signers, then writable accounts, programs last.
	accounts = filterUnique(accounts)
	slices.SortFunc(accounts, compareAccounts)

	var m Message
	for _, account := range accounts {
		key := account.PublicKey
		if len(key) == 0 {
			key = make([]byte, ed25519.PublicKeySize)
		}
		m.Accounts = append(m.Accounts, key)

		switch {
		case account.IsSigner && !account.IsWritable:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case account.IsSigner:
			m.Header.NumSignatures++
		case !account.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	for _, i := range instructions {
		c := CompiledInstruction{
			ProgramIndex: byte(indexOf(m.Accounts, i.Program)),
			Data:         i.Data,
		}

		for _, a := range i.Accounts {
			key := a.PublicKey
			if len(key) == 0 {
				key = make([]byte, ed25519.PublicKeySize)
			}
			c.Accounts = append(c.Accounts, byte(indexOf(m.Accounts, key)))
		}

		m.Instructions = append(m.Instructions, c)
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// Signature returns the first signature, which identifies the transaction.
func (t *Transaction) Signature() Signature {
	if len(t.Signatures) == 0 {
		return Signature{}
	}
	return t.Signatures[0]
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each of the provided keys. Each key must belong
// to one of the required signers of the message.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	messageBytes := t.Message.Marshal()

	for _, s := range signers {
		pub := s.Public().(ed25519.PublicKey)
		index := indexOf(t.Message.Accounts, pub)
		if index < 0 {
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		}
		if index >= len(t.Signatures) || index >= int(t.Message.Header.NumSignatures) {
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		}

		copy(t.Signatures[index][:], ed25519.Sign(s, messageBytes))
	}

	return nil
}

// IsFullySigned reports whether every required signature slot is populated.
func (t *Transaction) IsFullySigned() bool {
	if len(t.Signatures) < int(t.Message.Header.NumSignatures) {
		return false
	}
	for _, s := range t.Signatures {
		if s == (Signature{}) {
			return false
		}
	}
	return true
}

func filterUnique(accounts []AccountMeta) []AccountMeta {
	filtered := make([]AccountMeta, 0, len(accounts))

	for _, account := range accounts {
		var seen bool
		for j := range filtered {
			if !bytes.Equal(account.PublicKey, filtered[j].PublicKey) {
				continue
			}

			// Permissions are promoted to the most privileged usage.
			filtered[j].IsSigner = filtered[j].IsSigner || account.IsSigner
			filtered[j].IsWritable = filtered[j].IsWritable || account.IsWritable
			filtered[j].isPayer = filtered[j].isPayer || account.isPayer
			seen = true
			break
		}

		if !seen {
			filtered = append(filtered, account)
		}
	}

	return filtered
}

func indexOf(slice []ed25519.PublicKey, item ed25519.PublicKey) int {
	for i, val := range slice {
		if bytes.Equal(val, item) {
			return i
		}
	}

	return -1
}
