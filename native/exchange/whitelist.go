package exchange

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// WhitelistSource decides whether a payout recipient may receive collateral
// from a whitelist-gated burn or redemption. The data payload is the opaque
// per-collateral configuration stored in the registry.
type WhitelistSource interface {
	Check(recipient ethcommon.Address, data []byte) (bool, error)
}

// whitelistDomainV1 is the domain separator mixed into attestation digests so
// signatures cannot be replayed from other signing contexts.
const whitelistDomainV1 = "crucible/whitelist/v1"

// AttestationWhitelist verifies recipients against a 65-byte secp256k1
// attestation supplied as the whitelist data: a registered attester signs
// keccak256(domain || recipient) off-line and governance stores the signature
// for the collateral.
type AttestationWhitelist struct {
	attester ethcommon.Address
}

// NewAttestationWhitelist constructs a whitelist bound to the attester key.
func NewAttestationWhitelist(attester ethcommon.Address) *AttestationWhitelist {
	return &AttestationWhitelist{attester: attester}
}

// AttestationDigest returns the digest an attester signs for a recipient.
func AttestationDigest(recipient ethcommon.Address) []byte {
	payload := make([]byte, 0, len(whitelistDomainV1)+ethcommon.AddressLength)
	payload = append(payload, whitelistDomainV1...)
	payload = append(payload, recipient.Bytes()...)
	return ethcrypto.Keccak256(payload)
}

// Check recovers the signer of the attestation and compares it against the
// registered attester. Empty data means the recipient carries no attestation.
func (w *AttestationWhitelist) Check(recipient ethcommon.Address, data []byte) (bool, error) {
	if w == nil {
		return false, fmt.Errorf("exchange: whitelist not configured")
	}
	if len(data) == 0 {
		return false, nil
	}
	if len(data) != 65 {
		return false, fmt.Errorf("exchange: whitelist attestation must be 65 bytes")
	}
	pubKey, err := ethcrypto.SigToPub(AttestationDigest(recipient), data)
	if err != nil {
		return false, nil
	}
	return ethcrypto.PubkeyToAddress(*pubKey) == w.attester, nil
}

// OpenWhitelist admits every recipient. An engine with no whitelist source at
// all still rejects gated payouts.
type OpenWhitelist struct{}

// Check always reports the recipient as admitted.
func (OpenWhitelist) Check(ethcommon.Address, []byte) (bool, error) { return true, nil }
