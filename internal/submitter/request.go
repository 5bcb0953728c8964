package submitter

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// RequestKind selects the destination contract method a relay request maps to.
type RequestKind string

const (
	KindTransfer RequestKind = "transfer"
	KindWithdraw RequestKind = "withdraw"
)

// Public signal counts are fixed by the verifier circuits.
const (
	TransferPublicSignals = 4
	WithdrawPublicSignals = 5
)

// Fixed tuple arities for the private transfer call.
const (
	StealthDataLen = 4
	AuditDataLen   = 2
)

// Proof is a Groth16 proof in the shape the on-chain verifier expects:
// two G1 points, one G2 point, and the ordered public signals.
type Proof struct {
	PA            [2]*big.Int
	PB            [2][2]*big.Int
	PC            [2]*big.Int
	PublicSignals []*big.Int
}

// RelayRequest is a transaction the submitter can encode and send. The two
// variants differ only in field shape; policy (idempotency, gas cap,
// confirmation) is identical.
type RelayRequest interface {
	Kind() RequestKind
	// NullifierHash is the one-time-use identifier checked against the
	// contract before anything is sent.
	NullifierHash() common.Hash
}

// TransferRequest carries a private transfer: the spent note's nullifier, the
// two new commitments, and the stealth/audit words the contract stores for
// the recipient and the auditor.
type TransferRequest struct {
	Nullifier           common.Hash
	NewSenderCommitment common.Hash
	RecipientCommitment common.Hash
	StealthData         [StealthDataLen]*big.Int
	AuditData           [AuditDataLen]*big.Int
	Proof               Proof
}

func (r *TransferRequest) Kind() RequestKind          { return KindTransfer }
func (r *TransferRequest) NullifierHash() common.Hash { return r.Nullifier }

// WithdrawRequest carries a private withdraw to a public recipient address.
type WithdrawRequest struct {
	Amount        *big.Int
	Nullifier     common.Hash
	NewCommitment common.Hash
	Recipient     common.Address
	Proof         Proof
}

func (r *WithdrawRequest) Kind() RequestKind          { return KindWithdraw }
func (r *WithdrawRequest) NullifierHash() common.Hash { return r.Nullifier }

// JSON wire shapes for request files. Numeric fields are strings so callers
// can use decimal or 0x-hex without precision loss.
type proofJSON struct {
	PA            [2]string    `json:"pA"`
	PB            [2][2]string `json:"pB"`
	PC            [2]string    `json:"pC"`
	PublicSignals []string     `json:"publicSignals"`
}

type transferRequestJSON struct {
	Nullifier           string                 `json:"nullifier"`
	NewSenderCommitment string                 `json:"newSenderCommitment"`
	RecipientCommitment string                 `json:"recipientCommitment"`
	StealthData         [StealthDataLen]string `json:"stealthData"`
	AuditData           [AuditDataLen]string   `json:"auditData"`
	Proof               proofJSON              `json:"proof"`
}

type withdrawRequestJSON struct {
	Amount        string    `json:"amount"`
	Nullifier     string    `json:"nullifier"`
	NewCommitment string    `json:"newCommitment"`
	Recipient     string    `json:"recipient"`
	Proof         proofJSON `json:"proof"`
}

// ParseTransferRequest decodes and validates a transfer request file.
// Shape or range violations fail here, before any network call.
func ParseTransferRequest(data []byte) (*TransferRequest, error) {
	var raw transferRequestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode transfer request: %v", err)
	}

	req := &TransferRequest{}
	var err error
	if req.Nullifier, err = parseWord(raw.Nullifier); err != nil {
		return nil, fmt.Errorf("nullifier: %v", err)
	}
	if req.NewSenderCommitment, err = parseWord(raw.NewSenderCommitment); err != nil {
		return nil, fmt.Errorf("newSenderCommitment: %v", err)
	}
	if req.RecipientCommitment, err = parseWord(raw.RecipientCommitment); err != nil {
		return nil, fmt.Errorf("recipientCommitment: %v", err)
	}
	for i, s := range raw.StealthData {
		if req.StealthData[i], err = parseUint256(s); err != nil {
			return nil, fmt.Errorf("stealthData[%d]: %v", i, err)
		}
	}
	for i, s := range raw.AuditData {
		if req.AuditData[i], err = parseUint256(s); err != nil {
			return nil, fmt.Errorf("auditData[%d]: %v", i, err)
		}
	}
	if req.Proof, err = parseProof(raw.Proof, TransferPublicSignals); err != nil {
		return nil, err
	}
	if err := validateProof(&req.Proof, TransferPublicSignals); err != nil {
		return nil, err
	}
	return req, nil
}

// ParseWithdrawRequest decodes and validates a withdraw request file.
func ParseWithdrawRequest(data []byte) (*WithdrawRequest, error) {
	var raw withdrawRequestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode withdraw request: %v", err)
	}

	req := &WithdrawRequest{}
	var err error
	if req.Amount, err = parseUint256(raw.Amount); err != nil {
		return nil, fmt.Errorf("amount: %v", err)
	}
	if req.Nullifier, err = parseWord(raw.Nullifier); err != nil {
		return nil, fmt.Errorf("nullifier: %v", err)
	}
	if req.NewCommitment, err = parseWord(raw.NewCommitment); err != nil {
		return nil, fmt.Errorf("newCommitment: %v", err)
	}
	if !common.IsHexAddress(raw.Recipient) {
		return nil, fmt.Errorf("recipient: invalid address %q", raw.Recipient)
	}
	req.Recipient = common.HexToAddress(raw.Recipient)
	if req.Proof, err = parseProof(raw.Proof, WithdrawPublicSignals); err != nil {
		return nil, err
	}
	if err := validateProof(&req.Proof, WithdrawPublicSignals); err != nil {
		return nil, err
	}
	return req, nil
}

func parseProof(raw proofJSON, signals int) (Proof, error) {
	var p Proof
	var err error
	for i, s := range raw.PA {
		if p.PA[i], err = parseUint256(s); err != nil {
			return p, fmt.Errorf("proof pA[%d]: %v", i, err)
		}
	}
	for i := range raw.PB {
		for j, s := range raw.PB[i] {
			if p.PB[i][j], err = parseUint256(s); err != nil {
				return p, fmt.Errorf("proof pB[%d][%d]: %v", i, j, err)
			}
		}
	}
	for i, s := range raw.PC {
		if p.PC[i], err = parseUint256(s); err != nil {
			return p, fmt.Errorf("proof pC[%d]: %v", i, err)
		}
	}
	if len(raw.PublicSignals) != signals {
		return p, fmt.Errorf("proof has %d public signals, want %d", len(raw.PublicSignals), signals)
	}
	p.PublicSignals = make([]*big.Int, signals)
	for i, s := range raw.PublicSignals {
		if p.PublicSignals[i], err = parseUint256(s); err != nil {
			return p, fmt.Errorf("proof publicSignals[%d]: %v", i, err)
		}
	}
	return p, nil
}

// parseUint256 accepts a decimal or 0x-hex string and enforces the 256-bit
// range before converting to big.Int for ABI packing.
func parseUint256(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty numeric value")
	}
	var v *uint256.Int
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = uint256.FromHex(s)
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid uint256 %q: %v", s, err)
	}
	return v.ToBig(), nil
}

// parseWord decodes a 0x-hex string into exactly 32 bytes.
func parseWord(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid hex word %q: %v", s, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("word is %d bytes, want %d", len(b), common.HashLength)
	}
	return common.BytesToHash(b), nil
}
