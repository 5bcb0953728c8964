package submitter

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Bridge contract ABI, restricted to the methods this relayer consumes.
const bridgeABIJSON = `[
  {
    "inputs": [{"internalType": "bytes32", "name": "nullifier", "type": "bytes32"}],
    "name": "usedNullifiers",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes", "name": "message", "type": "bytes"},
      {"internalType": "bytes", "name": "attestation", "type": "bytes"}
    ],
    "name": "receiveMessage",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "nullifier", "type": "bytes32"},
      {"internalType": "bytes32", "name": "newSenderCommitment", "type": "bytes32"},
      {"internalType": "bytes32", "name": "recipientCommitment", "type": "bytes32"},
      {"internalType": "uint256[4]", "name": "stealthData", "type": "uint256[4]"},
      {"internalType": "uint256[2]", "name": "auditData", "type": "uint256[2]"},
      {"internalType": "uint256[2]", "name": "pA", "type": "uint256[2]"},
      {"internalType": "uint256[2][2]", "name": "pB", "type": "uint256[2][2]"},
      {"internalType": "uint256[2]", "name": "pC", "type": "uint256[2]"},
      {"internalType": "uint256[4]", "name": "publicSignals", "type": "uint256[4]"}
    ],
    "name": "privateTransfer",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "amount", "type": "uint256"},
      {"internalType": "bytes32", "name": "nullifier", "type": "bytes32"},
      {"internalType": "bytes32", "name": "newCommitment", "type": "bytes32"},
      {"internalType": "address", "name": "recipient", "type": "address"},
      {"internalType": "uint256[2]", "name": "pA", "type": "uint256[2]"},
      {"internalType": "uint256[2][2]", "name": "pB", "type": "uint256[2][2]"},
      {"internalType": "uint256[2]", "name": "pC", "type": "uint256[2]"},
      {"internalType": "uint256[5]", "name": "publicSignals", "type": "uint256[5]"}
    ],
    "name": "withdraw",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var bridgeABI = mustParseABI(bridgeABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("bridge ABI parse error: %v", err))
	}
	return parsed
}

// encodeCall packs a relay request into destination calldata. The two request
// kinds differ only in field shape, so this is the single place call shape is
// decided.
func encodeCall(req RelayRequest) ([]byte, error) {
	switch r := req.(type) {
	case *TransferRequest:
		if err := validateProof(&r.Proof, TransferPublicSignals); err != nil {
			return nil, err
		}
		for i, v := range r.StealthData {
			if err := checkFieldElement(fmt.Sprintf("stealthData[%d]", i), v, fr.Modulus()); err != nil {
				return nil, err
			}
		}
		for i, v := range r.AuditData {
			if err := checkFieldElement(fmt.Sprintf("auditData[%d]", i), v, fr.Modulus()); err != nil {
				return nil, err
			}
		}
		return bridgeABI.Pack("privateTransfer",
			[32]byte(r.Nullifier),
			[32]byte(r.NewSenderCommitment),
			[32]byte(r.RecipientCommitment),
			r.StealthData,
			r.AuditData,
			r.Proof.PA,
			r.Proof.PB,
			r.Proof.PC,
			publicSignalsArray4(r.Proof.PublicSignals),
		)
	case *WithdrawRequest:
		if err := validateProof(&r.Proof, WithdrawPublicSignals); err != nil {
			return nil, err
		}
		if r.Amount == nil || r.Amount.Sign() < 0 {
			return nil, fmt.Errorf("withdraw amount missing or negative")
		}
		return bridgeABI.Pack("withdraw",
			r.Amount,
			[32]byte(r.Nullifier),
			[32]byte(r.NewCommitment),
			r.Recipient,
			r.Proof.PA,
			r.Proof.PB,
			r.Proof.PC,
			publicSignalsArray5(r.Proof.PublicSignals),
		)
	default:
		return nil, fmt.Errorf("unknown relay request type %T", req)
	}
}

// encodeReceiveMessage packs a cross-chain message and its oracle attestation
// for the destination's receiveMessage entry point.
func encodeReceiveMessage(message, attestation []byte) ([]byte, error) {
	return bridgeABI.Pack("receiveMessage", message, attestation)
}

// validateProof rejects proofs whose shape or numeric range cannot possibly
// verify on-chain: coordinates must be base-field elements and public signals
// scalar-field elements of BN254.
func validateProof(p *Proof, signals int) error {
	if len(p.PublicSignals) != signals {
		return fmt.Errorf("proof has %d public signals, want %d", len(p.PublicSignals), signals)
	}
	for i, v := range p.PA {
		if err := checkFieldElement(fmt.Sprintf("pA[%d]", i), v, fp.Modulus()); err != nil {
			return err
		}
	}
	for i := range p.PB {
		for j, v := range p.PB[i] {
			if err := checkFieldElement(fmt.Sprintf("pB[%d][%d]", i, j), v, fp.Modulus()); err != nil {
				return err
			}
		}
	}
	for i, v := range p.PC {
		if err := checkFieldElement(fmt.Sprintf("pC[%d]", i), v, fp.Modulus()); err != nil {
			return err
		}
	}
	for i, v := range p.PublicSignals {
		if err := checkFieldElement(fmt.Sprintf("publicSignals[%d]", i), v, fr.Modulus()); err != nil {
			return err
		}
	}
	return nil
}

func checkFieldElement(name string, v *big.Int, modulus *big.Int) error {
	if v == nil {
		return fmt.Errorf("%s is nil", name)
	}
	if v.Sign() < 0 || v.Cmp(modulus) >= 0 {
		return fmt.Errorf("%s out of field range", name)
	}
	return nil
}

func publicSignalsArray4(signals []*big.Int) [TransferPublicSignals]*big.Int {
	var out [TransferPublicSignals]*big.Int
	copy(out[:], signals)
	return out
}

func publicSignalsArray5(signals []*big.Int) [WithdrawPublicSignals]*big.Int {
	var out [WithdrawPublicSignals]*big.Int
	copy(out[:], signals)
	return out
}
