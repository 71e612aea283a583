package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SignType says what kind of payload a signing flow is handling.
type SignType string

const (
	SignTypeTransaction  SignType = "transaction"
	SignTypeTypedMessage SignType = "typed-message"
	SignTypePersonalSign SignType = "personal-sign"
)

// FlowState is the lifecycle state of a signing flow.
type FlowState string

const (
	FlowIdle                  FlowState = "idle"
	FlowSigning               FlowState = "signing"
	FlowSigned                FlowState = "signed"
	FlowError                 FlowState = "error"
	FlowUserInteractionNeeded FlowState = "user-interaction-needed"
)

// Interaction names a physical confirmation pending on the device.
type Interaction string

const (
	InteractionUnlockDevice          Interaction = "unlock-device"
	InteractionAllowSecureConnection Interaction = "allow-secure-connection"
	InteractionConfirmOpenApp        Interaction = "confirm-open-app"
	InteractionSignTransaction       Interaction = "sign-transaction"
	InteractionAllowListApps         Interaction = "allow-list-apps"
	InteractionWeb3ChecksOptIn       Interaction = "web3-checks-opt-in"
)

// SignFlowStatus is a tagged union over (SignType, FlowState). Interaction
// is set only while State is FlowUserInteractionNeeded; Signed only when
// State is FlowSigned; Err only when State is FlowError.
type SignFlowStatus struct {
	Type        SignType           `json:"signType"`
	State       FlowState          `json:"status"`
	Interaction Interaction        `json:"interaction,omitempty"`
	Signed      *SignedTransaction `json:"signedTransaction,omitempty"`
	Err         error              `json:"-"`
}

// SignRequest is what a signing flow hands to the device: the payload to
// confirm and sign, and the account it signs for.
type SignRequest struct {
	Type           SignType
	Address        common.Address
	DerivationPath string
	Payload        []byte
}

// SignedTransaction is the outcome of a successful sign. Hash is set only
// when the transaction was also broadcast; its presence is the sole
// discriminator between signed-only and signed-and-broadcast.
type SignedTransaction struct {
	RawTransaction       hexutil.Bytes `json:"rawTransaction"`
	SignedRawTransaction hexutil.Bytes `json:"signedRawTransaction"`
	Hash                 *common.Hash  `json:"hash,omitempty"`
}

// Broadcast reports whether the transaction was broadcast to the network.
func (s SignedTransaction) Broadcast() bool { return s.Hash != nil }
