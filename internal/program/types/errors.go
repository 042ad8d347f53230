package types

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace groups the program's registered errors.
const Codespace = "token_swap"

// Program errors. Codes start at 6000 so they line up with the custom error
// range clients already expect from on-chain swap programs.
var (
	ErrAlreadyInitialized   = errorsmod.Register(Codespace, 6000, "pool already initialized")
	ErrPoolNotInitialized   = errorsmod.Register(Codespace, 6001, "pool not initialized")
	ErrAuthorityMismatch    = errorsmod.Register(Codespace, 6002, "pool authority mismatch")
	ErrAccountMismatch      = errorsmod.Register(Codespace, 6003, "account mismatch")
	ErrInsufficientReserves = errorsmod.Register(Codespace, 6004, "insufficient reserves")
	ErrSlippageExceeded     = errorsmod.Register(Codespace, 6005, "slippage exceeded")
	ErrArithmeticOverflow   = errorsmod.Register(Codespace, 6006, "arithmetic overflow")
	ErrInvalidAmount        = errorsmod.Register(Codespace, 6007, "invalid amount")
	ErrFeeTooHigh           = errorsmod.Register(Codespace, 6008, "fee too high")
	ErrInvalidInstruction   = errorsmod.Register(Codespace, 6009, "invalid instruction")
	ErrMissingSignature     = errorsmod.Register(Codespace, 6010, "missing required signature")
	ErrIdenticalAssets      = errorsmod.Register(Codespace, 6011, "pool assets must differ")
)

var kinds = []struct {
	err  *errorsmod.Error
	name string
}{
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrPoolNotInitialized, "PoolNotInitialized"},
	{ErrAuthorityMismatch, "AuthorityMismatch"},
	{ErrAccountMismatch, "AccountMismatch"},
	{ErrInsufficientReserves, "InsufficientReserves"},
	{ErrSlippageExceeded, "SlippageExceeded"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrFeeTooHigh, "FeeTooHigh"},
	{ErrInvalidInstruction, "InvalidInstruction"},
	{ErrMissingSignature, "MissingSignature"},
	{ErrIdenticalAssets, "IdenticalAssets"},
}

// Kind returns the taxonomy name of a program error, or "" for anything else.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// Code returns the registered code of a program error, or 0.
func Code(err error) uint32 {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.ABCICode()
		}
	}
	return 0
}
