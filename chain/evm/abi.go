package evm

import (
	"github.com/umbracle/ethgo/abi"
)

const (
	subnetIDABIType   = "tuple(uint64 root, address[] route)"
	fvmAddressABIType = "tuple(uint8 addrType, bytes payload)"
	ipcAddressABIType = "tuple(" + subnetIDABIType + " subnetId, " + fvmAddressABIType + " rawAddress)"

	storableMsgABIType = "tuple(" +
		ipcAddressABIType + " from, " +
		ipcAddressABIType + " to, " +
		"uint256 value, uint64 nonce, bytes4 method, bytes params)"

	crossMsgABIType   = "tuple(" + storableMsgABIType + " message, bool wrapped)"
	childCheckABIType = "tuple(" + subnetIDABIType + " source, bytes32[] checks)"

	bottomUpCheckpointABIType = "tuple(" +
		subnetIDABIType + " source, " +
		"uint64 epoch, " +
		"uint256 fee, " +
		crossMsgABIType + "[] crossMsgs, " +
		childCheckABIType + "[] children, " +
		"bytes32 prevHash, " +
		"bytes proof)"

	topDownCheckpointABIType = "tuple(uint64 epoch, " + crossMsgABIType + "[] topDownMsgs)"

	validatorABIType = "tuple(address addr, uint256 weight, " + fvmAddressABIType + " workerAddr, string netAddresses)"
)

var (
	// gateway contract

	bottomUpCheckPeriodMethod, _ = abi.NewMethod("function bottomUpCheckPeriod() returns (uint64)")
	topDownCheckPeriodMethod, _  = abi.NewMethod("function topDownCheckPeriod() returns (uint64)")
	appliedTopDownNonceMethod, _ = abi.NewMethod("function appliedTopDownNonce() returns (uint64)")
	initializedMethod, _         = abi.NewMethod("function initialized() returns (bool)")

	lastVotingExecutedEpochMethod, _ = abi.NewMethod("function lastVotingExecutedEpoch() returns (uint64)")

	hasValidatorVotedMethod, _ = abi.NewMethod(
		"function hasValidatorVotedForSubmission(uint64 epoch, address submitter) returns (bool)")

	getTopDownMsgsMethod, _ = abi.NewMethod("function getTopDownMsgs(" +
		subnetIDABIType + " subnetId, uint64 fromNonce) returns (" + crossMsgABIType + "[])")

	bottomUpCheckpointAtEpochMethod, _ = abi.NewMethod("function bottomUpCheckpointAtEpoch(uint64 epoch) " +
		"returns (bool exists, " + bottomUpCheckpointABIType + " checkpoint)")

	submitTopDownCheckpointMethod, _ = abi.NewMethod("function submitTopDownCheckpoint(" +
		topDownCheckpointABIType + " checkpoint)")

	// subnet actor contract

	minValidatorsMethod, _ = abi.NewMethod("function minValidators() returns (uint64)")
	getValidatorSetMethod, _ = abi.NewMethod("function getValidatorSet() returns (tuple(" +
		validatorABIType + "[] validators, uint64 configurationNumber))")

	prevExecutedCheckpointHashMethod, _ = abi.NewMethod("function prevExecutedCheckpointHash() returns (bytes32)")

	submitCheckpointMethod, _ = abi.NewMethod("function submitCheckpoint(" +
		bottomUpCheckpointABIType + " checkpoint)")
)
